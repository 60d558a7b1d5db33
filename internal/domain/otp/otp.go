package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"time"
)

// TTL is the absolute lifetime of a code. The redis store enforces it with
// an EX on the key; Expired re-checks it so store implementations without
// native expiry honor the same rule.
const TTL = 5 * time.Minute

const Digits = 6

var (
	ErrNotFound = errors.New("no code for this email")
	ErrMismatch = errors.New("code does not match")
	ErrExpired  = errors.New("code has expired")
)

// Code is the persisted one-time code record, at most one live per email.
type Code struct {
	Email     string    `json:"email"`
	Code      string    `json:"otp"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Code) Expired(now time.Time) bool {
	return now.Sub(c.CreatedAt) > TTL
}

// Verify compares in constant time and enforces expiry.
func (c Code) Verify(candidate string, now time.Time) error {
	if c.Expired(now) {
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(candidate)) != 1 {
		return ErrMismatch
	}

	return nil
}

// Generate produces a cryptographically random numeric code of Digits length.
func Generate() (string, error) {
	buf := make([]byte, Digits)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, Digits)
	for i := range buf {
		out[i] = '0' + (buf[i] % 10)
	}

	return string(out), nil
}

func New(email, code string, now time.Time) Code {
	return Code{
		Email:     email,
		Code:      code,
		CreatedAt: now,
	}
}
