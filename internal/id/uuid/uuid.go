// Package uuid generates record identifiers.
package uuid

import guuid "github.com/google/uuid"

// Generator issues UUIDv7 ids so records sort roughly by creation time.
type Generator struct{}

func (Generator) NewID() string {
	id, err := guuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does.
		return guuid.NewString()
	}
	return id.String()
}
