package eventstore

import (
	"errors"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for new events and aggregate instances.
// The strategy is selected at store construction.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}

type randomIDs struct{}

// RandomIDs generates fully random identifiers (UUID v4). This is the
// default strategy.
func RandomIDs() IDGenerator {
	return randomIDs{}
}

func (randomIDs) NewID() (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, errors.Join(ErrGeneratingIDFailed, err)
	}

	return id, nil
}

type timeOrderedIDs struct{}

// TimeOrderedIDs generates time-ordered identifiers (UUID v7), monotonically
// increasing with insertion order. Useful when the global log is consumed in
// id order.
func TimeOrderedIDs() IDGenerator {
	return timeOrderedIDs{}
}

func (timeOrderedIDs) NewID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, errors.Join(ErrGeneratingIDFailed, err)
	}

	return id, nil
}
