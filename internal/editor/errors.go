package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned for an action the current mode does
	// not allow. The state is unchanged.
	ErrInvalidTransition = errors.New("invalid editor transition")
	// ErrWriteInFlight rejects a second write or a staged change while a
	// remote write is pending.
	ErrWriteInFlight = errors.New("a write is already in progress")
	// ErrNotConfirmed is returned when the confirmer declines a delete.
	ErrNotConfirmed = errors.New("delete not confirmed")
	// ErrUnknownRecord is returned when selecting a key not in the mirror.
	ErrUnknownRecord = errors.New("unknown record")
)

// OpKind identifies a remote write.
type OpKind int

const (
	OpCreate OpKind = iota + 1
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// RemoteWriteError reports a failed create, update or delete. The editor is
// left in the state it had before the write.
type RemoteWriteError struct {
	Op  OpKind
	Key string
	Err error
}

func (e *RemoteWriteError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s song: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s song %s: %v", e.Op, e.Key, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }
