package engine

import "time"

// Op is an entity lifecycle transition.
type Op uint8

const (
	OpCreate Op = iota
	OpUpdate
	OpLeave
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpLeave:
		return "leave"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Observer receives decode statistics. Implementations must be cheap; they
// are called from the decode loop.
type Observer interface {
	MessageApplied(kind Kind, elapsed time.Duration, err error)
	EntityChanged(op Op)
	FieldsDecoded(n int)
	LiveEntities(n int)
}

type nopObserver struct{}

func (nopObserver) MessageApplied(Kind, time.Duration, error) {}
func (nopObserver) EntityChanged(Op)                          {}
func (nopObserver) FieldsDecoded(int)                         {}
func (nopObserver) LiveEntities(int)                          {}
