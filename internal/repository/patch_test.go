package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUpdateBuilder(t *testing.T) {
	roleID := uuid.New()
	current := storedAccount{
		FullName:    "Ada Lovelace",
		Username:    "ada.lovelace",
		Email:       ptr("ada@example.com"),
		PhoneNumber: nil,
		RoleID:      roleID,
		IsActive:    true,
	}

	t.Run("same values produce no columns", func(t *testing.T) {
		b := newUpdateBuilder(current)
		b.fullName(ptr("Ada Lovelace"))
		b.username(nil)
		b.email(ptr("ada@example.com"))
		b.phoneNumber(nil)
		b.roleID(roleID)
		b.isActive(true)

		assert.True(t, b.empty())
	})

	t.Run("absent optional fields are untouched", func(t *testing.T) {
		b := newUpdateBuilder(current)
		b.fullName(nil)
		b.username(nil)

		assert.True(t, b.empty())
	})

	t.Run("changed values are collected in order", func(t *testing.T) {
		otherRole := uuid.New()
		b := newUpdateBuilder(current)
		b.fullName(ptr("Ada King"))
		b.username(nil)
		b.email(nil)
		b.phoneNumber(ptr("+44 20 7946 0000"))
		b.roleID(otherRole)
		b.isActive(false)

		assert.Equal(t, []string{"full_name", "email", "phone_number", "role_id", "is_active"}, b.columns())

		id := uuid.New()
		query, args := b.build(id)
		assert.Equal(t,
			"UPDATE accounts SET full_name = $1, email = $2, phone_number = $3, role_id = $4, is_active = $5, updated_at = now() WHERE id = $6",
			query)
		assert.Equal(t, []any{"Ada King", (*string)(nil), ptr("+44 20 7946 0000"), otherRole, false, id}, args)
	})

	t.Run("image always counts as a change", func(t *testing.T) {
		b := newUpdateBuilder(current)
		b.image(nil)

		assert.False(t, b.empty())
		query, args := b.build(uuid.Nil)
		assert.Equal(t, "UPDATE accounts SET image_url = $1, updated_at = now() WHERE id = $2", query)
		assert.Len(t, args, 2)
	})
}

func TestEqualText(t *testing.T) {
	assert.True(t, equalText(nil, nil))
	assert.True(t, equalText(ptr("a"), ptr("a")))
	assert.False(t, equalText(ptr("a"), nil))
	assert.False(t, equalText(nil, ptr("")))
	assert.False(t, equalText(ptr("a"), ptr("b")))
}
