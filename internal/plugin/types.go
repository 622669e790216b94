// Package plugin runs external executables in response to capture events.
// A plugin is a directory holding a plugin.json manifest and an executable
// that reads one Request as JSON on stdin and writes one Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"

	"github.com/ayusman/facepalm/internal/event"
)

// ActionEvent is the action sent when an event a plugin subscribed to fires.
const ActionEvent = "event"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Actions     []string        `json:"actions"`
	Events      []event.Kind    `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action string          `json:"action"`
	Event  *event.Event    `json:"event,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
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

// Subscribes reports whether the plugin wants events of kind k.
func (p *Plugin) Subscribes(k event.Kind) bool {
	return slices.Contains(p.Manifest.Events, k)
}
