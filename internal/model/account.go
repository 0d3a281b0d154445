package model

import (
	"time"

	"github.com/deppfellow/user-service/internal/storage"
	"github.com/google/uuid"
)

// Account is the list projection of a stored account, with its role name
// resolved.
type Account struct {
	ID          uuid.UUID  `json:"id"`
	FullName    string     `json:"fullname"`
	Username    string     `json:"username"`
	Email       *string    `json:"email"`
	PhoneNumber *string    `json:"phoneNumber"`
	Role        string     `json:"role"`
	ImageURL    *string    `json:"imageUrl"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// NewAccount is the input of an account creation.
type NewAccount struct {
	FullName    string
	Username    string
	Email       *string
	PhoneNumber *string
	RoleID      uuid.UUID
	Password    string

	// Image is optional. ImageBaseURL is the scheme://host the stored
	// image will be served from.
	Image        *storage.Upload
	ImageBaseURL string
}

// AccountPatch is the input of an account update.
//
// FullName and Username are optional: nil leaves the stored value alone.
// Email and PhoneNumber are always written and nil stores NULL. RoleID and
// IsActive are always written.
type AccountPatch struct {
	ID          uuid.UUID
	FullName    *string
	Username    *string
	Email       *string
	PhoneNumber *string
	RoleID      uuid.UUID
	IsActive    bool

	// RemoveImage wins over Image when both are set.
	RemoveImage  bool
	Image        *storage.Upload
	ImageBaseURL string
}
