package util

import "github.com/google/uuid"

// NewID returns a random UUID string used for run and memory identifiers.
func NewID() string { return uuid.NewString() }
