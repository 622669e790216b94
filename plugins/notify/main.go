// Package main provides a desktop notification plugin.
// It announces saved photos via notify-send on Linux and AppleScript on macOS.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Event mirrors the fields of the published event this plugin reads.
type Event struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  *Event          `json:"event"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the plugin section of plugin.json.
type Config struct {
	Title  string `json:"title"`
	DryRun bool   `json:"dry_run"`
}

// Notification is what gets shown and echoed back in the response data.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "event" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}
	if req.Event == nil {
		writeErrorResponse("missing event")
		return
	}

	cfg := Config{Title: "Facepalm Camera"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	n, ok := notificationFor(cfg.Title, req.Event)
	if !ok {
		writeSuccessResponse(nil)
		return
	}

	if !cfg.DryRun {
		if err := show(n); err != nil {
			writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
			return
		}
	}

	writeSuccessResponse(n)
}

// notificationFor returns the notification for e, or false for kinds this
// plugin stays quiet about.
func notificationFor(title string, e *Event) (*Notification, bool) {
	switch e.Kind {
	case "saved":
		body := "Picture taken"
		if e.Path != "" {
			body = fmt.Sprintf("Picture taken: %s", filepath.Base(e.Path))
		}
		return &Notification{Title: title, Body: body}, true
	case "save_failed":
		body := "Save failed"
		if e.Error != "" {
			body = fmt.Sprintf("Save failed: %s", e.Error)
		}
		return &Notification{Title: title, Body: body}, true
	}
	return nil, false
}

func show(n *Notification) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", n.Body, n.Title)
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", "--app-name=facepalm", n.Title, n.Body)
	default:
		return errors.New("notifications not supported on " + runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(n *Notification) {
	resp := Response{Success: true}
	if n != nil {
		resp.Data, _ = json.Marshal(n)
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
