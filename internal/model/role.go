package model

import "github.com/google/uuid"

// Role is a named permission group an account belongs to.
type Role struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
