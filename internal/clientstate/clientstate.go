// Package clientstate defines the values the bootstrap coordinator persists in
// shared storage: the client state enumeration, its storage keys and lease tokens.
package clientstate

import (
	"math/rand/v2"
	"strconv"
)

// Storage keys shared by every coordinator instance of a storage origin.
// They must not change: instances of different builds interoperate through them.
const (
	StateKey = "clientState"
	LeaseKey = "clientInitId"
)

// State is the persisted client state. The zero value means the key is absent.
type State int

const (
	Unset State = iota
	Initializing
	Active
	// Unknown is a stored value this build does not recognize. It counts as
	// "set" so no lease is taken, but it is never treated as Active.
	Unknown
)

const (
	valueInitializing = "1"
	valueActive       = "2"
)

// Parse maps a stored value to a State. ok reports whether the key was present.
func Parse(value string, ok bool) State {
	if !ok || value == "" {
		return Unset
	}
	switch value {
	case valueInitializing:
		return Initializing
	case valueActive:
		return Active
	default:
		return Unknown
	}
}

// Value returns the persisted representation. Unset and Unknown have none.
func (s State) Value() string {
	switch s {
	case Initializing:
		return valueInitializing
	case Active:
		return valueActive
	default:
		return ""
	}
}

// IsSet reports whether any state was stored.
func (s State) IsSet() bool { return s != Unset }

// IsActive reports whether the client is known to be activated.
func (s State) IsActive() bool { return s == Active }

func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case Initializing:
		return "initializing"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// NewLeaseToken returns a stringified random float in [0,1).
func NewLeaseToken() string {
	return strconv.FormatFloat(rand.Float64(), 'f', -1, 64)
}
