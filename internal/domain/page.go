package domain

import "strconv"

type Page struct {
	Number int `json:"number"`
	Size   int `json:"size"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

// Paginate resolves a raw page parameter. Anything that is not a positive
// integer yields page 1 and pages past the end clamp to the last page.
func Paginate(total int, raw string, size int) Page {
	if size <= 0 {
		size = 10
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}

	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}
	return Page{Number: number, Size: size, Total: total, Pages: pages}
}

func (p Page) Bounds() (start, end int) {
	start = (p.Number - 1) * p.Size
	if start > p.Total {
		start = p.Total
	}
	end = start + p.Size
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

func PageSlice[T any](items []T, raw string, size int) ([]T, Page) {
	page := Paginate(len(items), raw, size)
	start, end := page.Bounds()
	return items[start:end], page
}
