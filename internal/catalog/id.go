package catalog

import "github.com/google/uuid"

// IDProvider abstracts identifier generation for catalog rows.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider returns an IDProvider backed by UUIDv7 values.
func NewUUIDProvider() IDProvider {
	return uuidProvider{}
}

func (uuidProvider) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
