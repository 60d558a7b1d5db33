package utils

import "github.com/google/uuid"

// IsUUID distinguishes a malformed identifier (reject up front with a 400)
// from a well-formed one that may still point at nothing (404 later).
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
