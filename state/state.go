package state

import (
	"fmt"
)

type Operation uint8

const (
	NONE Operation = iota
	PUT
	GET
)

type Key string

type Value string

const NIL = Value("")

type Command struct {
	Op Operation
	K  Key
	V  Value
}

type State struct {
	Store map[Key]Value
}

func InitState() *State {
	return &State{make(map[Key]Value)}
}

// Conflict reports whether two commands must be ordered relative to each
// other. Commands on different keys never conflict, and neither do two
// reads of the same key. No-ops conflict with nothing.
func Conflict(gamma *Command, delta *Command) bool {
	if gamma.Op == NONE || delta.Op == NONE {
		return false
	}
	if gamma.K == delta.K {
		if gamma.Op == PUT || delta.Op == PUT {
			return true
		}
	}
	return false
}

func IsRead(cmd *Command) bool {
	return cmd.Op == GET
}

func (c *Command) Execute(st *State) Value {
	switch c.Op {
	case PUT:
		st.Store[c.K] = c.V
		return c.V

	case GET:
		if val, present := st.Store[c.K]; present {
			return val
		}
	}

	return NIL
}

func (c *Command) String() string {
	switch c.Op {
	case PUT:
		return fmt.Sprintf("Set(%s, %s)", string(c.K), string(c.V))
	case GET:
		return fmt.Sprintf("Get(%s)", string(c.K))
	default:
		return "Noop()"
	}
}
