package user

import "fmt"

type ConflictField string

const (
	ConflictEmail    ConflictField = "email"
	ConflictUsername ConflictField = "username"
)

// ConflictError reports that another account already owns the candidate
// email or username. Its message is safe to show to users.
type ConflictError struct {
	Field ConflictField
	Value string
}

func (e *ConflictError) Error() string {
	if e.Field == ConflictUsername {
		return fmt.Sprintf("An account already exists with username %q.", e.Value)
	}
	return fmt.Sprintf("An account for %s is already in use.", e.Value)
}
