package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for messages, tasks and workflows.
func NewID() string { return uuid.NewString() }
