package user

import (
	"errors"
	"strings"
	"time"
)

// Role is a closed enumeration. Handlers never compare raw strings; the
// authz package owns which role may perform which operation.
type Role string

const (
	RoleStudent    Role = "student"
	RolePresident  Role = "president"
	RoleManagement Role = "management"
	RoleFinance    Role = "finance"
)

var ErrInvalidRole = errors.New("invalid role")

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RolePresident:
		return RolePresident, nil
	case RoleManagement:
		return RoleManagement, nil
	case RoleFinance:
		return RoleFinance, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) String() string { return string(r) }

var ErrNotFound = errors.New("user not found")

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	Role         Role       `json:"role"`
	IsVerified   bool       `json:"isVerified"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NormalizeEmail applies the canonical form the unique index is built on.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
