package catalog

import "fmt"

// NotFoundError reports a lookup for a catalog row that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog: %s %s not found", e.Resource, e.ID)
}

// ConflictError reports a name or title collision with an existing row.
type ConflictError struct {
	Resource string
	Value    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("catalog: %s %q already exists", e.Resource, e.Value)
}
