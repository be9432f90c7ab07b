// Package platform holds the home-automation object/state tree the bridge
// writes to, and the transports that expose it.
package platform

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

const ObjectTypeState = "state"

// Common carries the platform-facing description of a state object.
type Common struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Role   string            `json:"role"`
	Read   bool              `json:"read"`
	Write  bool              `json:"write"`
	Unit   string            `json:"unit,omitempty"`
	Min    *float64          `json:"min,omitempty"`
	Max    *float64          `json:"max,omitempty"`
	States map[string]string `json:"states,omitempty"`
}

// Native is the bridge's own payload: the originating device and whether the
// friendly rendering is published instead of the raw value.
type Native struct {
	Id       string `json:"id"`
	Friendly bool   `json:"friendly,omitempty"`
}

type Object struct {
	Id     string `json:"_id"`
	Type   string `json:"type"`
	Common Common `json:"common"`
	Native Native `json:"native"`
}

// State is a value with its acknowledgement flag. Ack is true for values
// confirmed by the device side, false for pending user commands.
type State struct {
	Val any       `json:"val"`
	Ack bool      `json:"ack"`
	Ts  time.Time `json:"ts"`
}

type StateHandler func(id string, state *State)

type Store interface {
	// SetObjectNotExists creates obj unless an object with the same id exists.
	// It reports whether the object was created.
	SetObjectNotExists(ctx context.Context, obj Object) (bool, error)
	GetObject(ctx context.Context, id string) (Object, error)
	SetState(ctx context.Context, id string, state State) error
	GetState(ctx context.Context, id string) (State, error)
	SubscribeStates(pattern string, handler StateHandler) error
	Objects() []Object
}

// Match reports whether id is covered by a subscription pattern. A trailing
// "*" matches any suffix.
func Match(pattern, id string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(id, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == id
}
