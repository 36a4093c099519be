package id

import "github.com/google/uuid"

func New() string {
	return uuid.NewString()
}

// Token returns a short random token used to keep object keys unique.
func Token() string {
	return uuid.NewString()[:8]
}
