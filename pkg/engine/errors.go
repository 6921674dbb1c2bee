package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity is returned for updates to slots that never held an
	// entity.
	ErrUnknownEntity = errors.New("engine: unknown entity")
	// ErrBadMessage is returned for messages whose payload does not match
	// their kind.
	ErrBadMessage = errors.New("engine: malformed message")
)

// DecodeError carries the message context of a failure. The replay that
// produced it cannot continue.
type DecodeError struct {
	Tick  uint32
	Kind  Kind
	Index int32 // entity index, -1 if the failure is not entity specific
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("tick %d %s entity %d: %v", e.Tick, e.Kind, e.Index, e.Err)
	}
	return fmt.Sprintf("tick %d %s: %v", e.Tick, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
