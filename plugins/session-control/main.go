// Package main provides a session control plugin for Linux desktops.
// It unlocks the current session through loginctl when a user is
// authenticated, and can lock it again on a rejected attempt.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action     string          `json:"action"`
	User       string          `json:"user"`
	Confidence float64         `json:"confidence"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config overrides the commands run for each event.
type Config struct {
	UnlockCommand []string `json:"unlock_command"`
	LockCommand   []string `json:"lock_command"`
	LockOnReject  bool     `json:"lock_on_reject"`
}

var (
	defaultUnlock = []string{"loginctl", "unlock-session"}
	defaultLock   = []string{"loginctl", "lock-session"}
)

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	argv, err := commandFor(req)
	if err != nil {
		writeResponse(Response{Error: err.Error()})
		return
	}
	if argv == nil {
		writeResponse(Response{Success: true})
		return
	}

	out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		writeResponse(Response{Error: fmt.Sprintf("%s failed: %v: %s", argv[0], err, out)})
		return
	}
	writeResponse(Response{Success: true})
}

// commandFor returns the command to run for req, or nil when there is
// nothing to do.
func commandFor(req Request) ([]string, error) {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	switch req.Action {
	case "authenticated":
		if req.User == "" {
			return nil, fmt.Errorf("authenticated event without a user")
		}
		if len(cfg.UnlockCommand) > 0 {
			return cfg.UnlockCommand, nil
		}
		return defaultUnlock, nil
	case "rejected":
		if !cfg.LockOnReject {
			return nil, nil
		}
		if len(cfg.LockCommand) > 0 {
			return cfg.LockCommand, nil
		}
		return defaultLock, nil
	default:
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
