// Package main provides a desktop notification plugin. It uses notify-send
// on Linux and AppleScript on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
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

const title = "mukha"

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	msg, err := message(req)
	if err != nil {
		writeResponse(Response{Error: err.Error()})
		return
	}

	argv := notifyCommand(runtime.GOOS, title, msg)
	if out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput(); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("notify failed: %v: %s", err, out)})
		return
	}
	writeResponse(Response{Success: true})
}

// message builds the notification body for an event.
func message(req Request) (string, error) {
	switch req.Action {
	case "authenticated":
		return fmt.Sprintf("Welcome back, %s (%.0f%%)", req.User, req.Confidence*100), nil
	case "rejected":
		return "Face not recognized", nil
	case "registered":
		return fmt.Sprintf("Registered %s", req.User), nil
	default:
		return "", fmt.Errorf("unknown action: %s", req.Action)
	}
}

// notifyCommand returns the command line that shows a notification on goos.
func notifyCommand(goos, title, msg string) []string {
	if goos == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s", quote(msg), quote(title))
		return []string{"osascript", "-e", script}
	}
	return []string{"notify-send", title, msg}
}

// quote returns s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
