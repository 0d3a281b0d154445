package handler

import (
	"strings"

	"github.com/deppfellow/user-service/internal/validation"
	"github.com/google/uuid"
)

// Empty is the payload of endpoints that take no input.
type Empty struct{}

func (r *Empty) Validate() error { return nil }

// IDParam carries an :id path parameter.
type IDParam struct {
	ID string `param:"id" validate:"required,uuid"`
}

func (r *IDParam) Validate() error {
	return validation.Struct(r)
}

func (r *IDParam) UUID() uuid.UUID {
	return uuid.MustParse(r.ID)
}

type CreateRoleRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (r *CreateRoleRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	return validation.Struct(r)
}

type UpdateRoleRequest struct {
	ID   string `json:"id" validate:"required,uuid"`
	Name string `json:"name" validate:"required,max=100"`
}

func (r *UpdateRoleRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	return validation.Struct(r)
}

// CreateAccountRequest is the multipart form of a new account. The
// optional image travels as the "image" file part.
type CreateAccountRequest struct {
	FullName    string `form:"fullname" validate:"required,min=2,max=100"`
	Username    string `form:"username" validate:"required,min=3,max=50"`
	Email       string `form:"email" validate:"omitempty,email,max=254"`
	PhoneNumber string `form:"phoneNumber" validate:"omitempty,max=30"`
	RoleID      string `form:"roleId" validate:"required,uuid"`
	Password    string `form:"password" validate:"required,min=6,maxbytes=72"`
}

func (r *CreateAccountRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	return validation.Struct(r)
}

// UpdateAccountRequest is the multipart form of an account patch. A blank
// full name or username leaves the stored value; a blank email or phone
// number clears it.
type UpdateAccountRequest struct {
	ID          string `form:"id" validate:"required,uuid"`
	FullName    string `form:"fullname" validate:"omitempty,min=2,max=100"`
	Username    string `form:"username" validate:"omitempty,min=3,max=50"`
	Email       string `form:"email" validate:"omitempty,email,max=254"`
	PhoneNumber string `form:"phoneNumber" validate:"omitempty,max=30"`
	RoleID      string `form:"roleId" validate:"required,uuid"`
	IsActive    bool   `form:"isActive"`
	RemoveImage bool   `form:"removeImage"`
}

func (r *UpdateAccountRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	return validation.Struct(r)
}

type AuthenticateRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *AuthenticateRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	return validation.Struct(r)
}

// optional returns nil for blank values.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
