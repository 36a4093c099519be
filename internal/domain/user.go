package domain

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type Education struct {
	Degree string `json:"degree"`
	School string `json:"school"`
	Year   string `json:"year"`
}

type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      []byte
	Role              string
	IsSuperuser       bool
	IsActive          bool
	FirstName         string
	LastName          string
	Bio               string
	Profession        string
	PhoneNumber       string
	Education         []Education
	Expertise         []string
	Interests         []string
	ProfilePictureKey string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// NormalizeRole demotes anyone but a superuser who claims the admin role.
func (u *User) NormalizeRole() {
	if !ValidRole(u.Role) {
		u.Role = RoleStudent
	}
	if u.Role == RoleAdmin && !u.IsSuperuser {
		u.Role = RoleStudent
	}
}

func (u User) IsAdmin() bool {
	return u.IsSuperuser || u.Role == RoleAdmin
}

func (u User) DisplayName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return u.Username
	}
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password))
}

// CleanEducation drops entries that are missing a degree, school or year.
func CleanEducation(in []Education) []Education {
	out := make([]Education, 0, len(in))
	for _, e := range in {
		e.Degree = strings.TrimSpace(e.Degree)
		e.School = strings.TrimSpace(e.School)
		e.Year = strings.TrimSpace(e.Year)
		if e.Degree == "" || e.School == "" || e.Year == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func CleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
