package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// storedAccount is the locked row an update is diffed against.
type storedAccount struct {
	FullName    string
	Username    string
	Email       *string
	PhoneNumber *string
	RoleID      uuid.UUID
	IsActive    bool
	ImageURL    *string
}

type assignment struct {
	column string
	value  any
}

// updateBuilder collects the columns of a sparse UPDATE. Values equal to
// the stored row are skipped.
type updateBuilder struct {
	current storedAccount
	set     []assignment
}

func newUpdateBuilder(current storedAccount) *updateBuilder {
	return &updateBuilder{current: current}
}

func (b *updateBuilder) add(column string, value any) {
	b.set = append(b.set, assignment{column: column, value: value})
}

// optionalText sets column only when next is present and differs.
func (b *updateBuilder) optionalText(column, stored string, next *string) {
	if next != nil && *next != stored {
		b.add(column, *next)
	}
}

// nullableText sets column when next differs from stored, nil included.
func (b *updateBuilder) nullableText(column string, stored, next *string) {
	if !equalText(stored, next) {
		b.add(column, next)
	}
}

func (b *updateBuilder) fullName(next *string) {
	b.optionalText("full_name", b.current.FullName, next)
}

func (b *updateBuilder) username(next *string) {
	b.optionalText("username", b.current.Username, next)
}

func (b *updateBuilder) email(next *string) {
	b.nullableText("email", b.current.Email, next)
}

func (b *updateBuilder) phoneNumber(next *string) {
	b.nullableText("phone_number", b.current.PhoneNumber, next)
}

func (b *updateBuilder) roleID(next uuid.UUID) {
	if next != b.current.RoleID {
		b.add("role_id", next)
	}
}

func (b *updateBuilder) isActive(next bool) {
	if next != b.current.IsActive {
		b.add("is_active", next)
	}
}

// image always sets image_url: a removal or a new upload is a change even
// when the stored value is already NULL.
func (b *updateBuilder) image(reference *string) {
	b.add("image_url", reference)
}

func (b *updateBuilder) empty() bool {
	return len(b.set) == 0
}

// build renders the statement. updated_at is refreshed on every write.
func (b *updateBuilder) build(id uuid.UUID) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(b.set)+1)

	sb.WriteString("UPDATE accounts SET ")
	for i, a := range b.set {
		args = append(args, a.value)
		fmt.Fprintf(&sb, "%s = $%d, ", a.column, i+1)
	}
	args = append(args, id)
	fmt.Fprintf(&sb, "updated_at = now() WHERE id = $%d", len(args))

	return sb.String(), args
}

// columns lists the columns set so far, in order.
func (b *updateBuilder) columns() []string {
	columns := make([]string, len(b.set))
	for i, a := range b.set {
		columns[i] = a.column
	}
	return columns
}

func equalText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
