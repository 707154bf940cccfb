// Package plugin discovers and runs hook plugins that react to
// authentication and registration events.
package plugin

import (
	"encoding/json"
	"slices"
)

// Event names a plugin can subscribe to through its manifest's actions list.
type Event string

const (
	EventAuthenticated Event = "authenticated"
	EventRejected      Event = "rejected"
	EventRegistered    Event = "registered"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	Config       json.RawMessage `json:"config,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the manifest subscribes to ev.
func (m Manifest) Handles(ev Event) bool {
	return slices.Contains(m.Actions, string(ev))
}

// Request is written as JSON to a plugin's stdin.
type Request struct {
	Action     string          `json:"action"`
	User       string          `json:"user,omitempty"`
	Confidence float64         `json:"confidence"`
	Config     json.RawMessage `json:"config,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
