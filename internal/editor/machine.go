package editor

import (
	"fmt"

	"github.com/five82/songbook/internal/song"
)

// Mode names the editor's current state.
type Mode int

const (
	ModeClosed Mode = iota
	ModeViewing
	ModeCreating
	ModeEditing
)

func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModeViewing:
		return "viewing"
	case ModeCreating:
		return "creating"
	case ModeEditing:
		return "editing"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// State is one of Closed, Viewing, Creating or Editing.
type State interface {
	Mode() Mode
	isState()
}

// Closed: nothing selected, nothing staged.
type Closed struct{}

// Viewing shows a committed record. It never carries staged values.
type Viewing struct {
	Record song.Record
}

// Creating stages values for a record that does not exist yet.
type Creating struct {
	Staged song.Fields
}

// Editing stages changes to an existing record.
type Editing struct {
	Record song.Record
	Staged song.Fields
}

func (Closed) Mode() Mode   { return ModeClosed }
func (Viewing) Mode() Mode  { return ModeViewing }
func (Creating) Mode() Mode { return ModeCreating }
func (Editing) Mode() Mode  { return ModeEditing }

func (Closed) isState()   {}
func (Viewing) isState()  {}
func (Creating) isState() {}
func (Editing) isState()  {}

// Machine is the editor state machine. Every transition except SetField and
// a snapshot refresh of the viewed record advances the epoch, which lets
// late write completions detect that the editor has moved on.
type Machine struct {
	state State
	epoch uint64
}

// NewMachine returns a machine in the closed state.
func NewMachine() *Machine {
	return &Machine{state: Closed{}}
}

// State returns the current state. Values are copies.
func (m *Machine) State() State { return m.state }

// Mode is shorthand for State().Mode().
func (m *Machine) Mode() Mode { return m.state.Mode() }

// Epoch returns the transition counter.
func (m *Machine) Epoch() uint64 { return m.epoch }

func (m *Machine) transition(s State) {
	m.state = s
	m.epoch++
}

func invalid(action string, from Mode) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, from)
}

// Select shows r. Allowed while closed or viewing another record.
func (m *Machine) Select(r song.Record) error {
	switch m.state.(type) {
	case Closed, Viewing:
		m.transition(Viewing{Record: r})
		return nil
	}
	return invalid("select", m.Mode())
}

// StartCreate begins a new record with empty staged values.
func (m *Machine) StartCreate() error {
	if _, ok := m.state.(Closed); !ok {
		return invalid("create", m.Mode())
	}
	m.transition(Creating{})
	return nil
}

// StartEdit stages the viewed record's committed values.
func (m *Machine) StartEdit() error {
	v, ok := m.state.(Viewing)
	if !ok {
		return invalid("edit", m.Mode())
	}
	m.transition(Editing{Record: v.Record, Staged: v.Record.Fields()})
	return nil
}

// SetField changes one staged value.
func (m *Machine) SetField(name song.Field, value string) error {
	switch s := m.state.(type) {
	case Creating:
		if err := s.Staged.Set(name, value); err != nil {
			return err
		}
		m.state = s
		return nil
	case Editing:
		if err := s.Staged.Set(name, value); err != nil {
			return err
		}
		m.state = s
		return nil
	}
	return invalid("set field", m.Mode())
}

// Staged returns the staged values while creating or editing.
func (m *Machine) Staged() (song.Fields, bool) {
	switch s := m.state.(type) {
	case Creating:
		return s.Staged, true
	case Editing:
		return s.Staged, true
	}
	return song.Fields{}, false
}

// Close discards everything. Allowed from any state.
func (m *Machine) Close() {
	m.transition(Closed{})
}

func (m *Machine) created() {
	if _, ok := m.state.(Creating); ok {
		m.transition(Closed{})
	}
}

func (m *Machine) updated(r song.Record) {
	if _, ok := m.state.(Editing); ok {
		m.transition(Viewing{Record: r})
	}
}

func (m *Machine) removed() {
	m.transition(Closed{})
}

// refresh re-reads the viewed record after a snapshot. A record that is gone
// closes the view; creating and editing are left alone.
func (m *Machine) refresh(lookup func(key string) (song.Record, bool)) {
	v, ok := m.state.(Viewing)
	if !ok {
		return
	}
	r, found := lookup(v.Record.Key)
	if !found {
		m.transition(Closed{})
		return
	}
	m.state = Viewing{Record: r}
}
