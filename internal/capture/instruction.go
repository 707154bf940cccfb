package capture

import (
	"fmt"
	"image"
	"time"
)

// Status is the per-frame capture state shown to the user.
type Status struct {
	Instruction       string          `json:"instruction"`
	Prompt            Prompt          `json:"prompt"`
	FacePresent       bool            `json:"face_present"`
	Position          Position        `json:"position"`
	Box               image.Rectangle `json:"box"`
	Blinks            int             `json:"blinks"`
	RequiredBlinks    int             `json:"required_blinks"`
	HeadMoves         int             `json:"head_moves"`
	RequiredHeadMoves int             `json:"required_head_moves"`
	Samples           int             `json:"samples"`
	Required          int             `json:"required"`
	Elapsed           time.Duration   `json:"elapsed"`
	Remaining         time.Duration   `json:"remaining"`
}

// Positioned reports whether the face passed the position gate.
func (s Status) Positioned() bool {
	return s.Position == PositionOK
}

// Prompt identifies which instruction applies to a status.
type Prompt int

const (
	PromptProgress Prompt = iota
	PromptPositionFace
	PromptMoveCloser
	PromptCenter
	PromptBlink
	PromptTurnHead
	PromptHoldStill
)

var promptNames = [...]string{
	PromptProgress:     "progress",
	PromptPositionFace: "position_face",
	PromptMoveCloser:   "move_closer",
	PromptCenter:       "center",
	PromptBlink:        "blink",
	PromptTurnHead:     "turn_head",
	PromptHoldStill:    "hold_still",
}

func (p Prompt) String() string {
	if p < 0 || int(p) >= len(promptNames) {
		return "unknown"
	}
	return promptNames[p]
}

// MarshalText encodes the prompt by name.
func (p Prompt) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PromptFor picks the instruction for a status. Earlier rules win.
func PromptFor(s Status) Prompt {
	switch {
	case s.Required > 0 && s.Samples >= s.Required:
		return PromptProgress
	case !s.FacePresent || s.Position == PositionNoFace:
		return PromptPositionFace
	case s.Position == PositionTooSmall:
		return PromptMoveCloser
	case s.Position == PositionOffCenter:
		return PromptCenter
	case s.Blinks < s.RequiredBlinks:
		return PromptBlink
	case s.HeadMoves < s.RequiredHeadMoves:
		return PromptTurnHead
	default:
		return PromptHoldStill
	}
}

// Instruction returns the on-screen text for a status.
func Instruction(s Status) string {
	switch PromptFor(s) {
	case PromptProgress:
		return fmt.Sprintf("Captured %d/%d samples", s.Samples, s.Required)
	case PromptPositionFace:
		return "Position your face in the frame"
	case PromptMoveCloser:
		return "Move closer to the camera"
	case PromptCenter:
		return "Move to the center of the frame"
	case PromptBlink:
		return fmt.Sprintf("Blink naturally %d times (%d/%d)", s.RequiredBlinks, s.Blinks, s.RequiredBlinks)
	case PromptTurnHead:
		return fmt.Sprintf("Turn your head side to side (%d/%d)", s.HeadMoves, s.RequiredHeadMoves)
	default:
		return "Hold still"
	}
}

// Phrase returns the spoken form of a prompt. Counters are left out so the
// phrase only changes when the prompt does.
func Phrase(p Prompt) string {
	switch p {
	case PromptPositionFace:
		return "Please position your face in the frame"
	case PromptMoveCloser:
		return "Please move closer"
	case PromptCenter:
		return "Please move to the center"
	case PromptBlink:
		return "Please blink naturally"
	case PromptTurnHead:
		return "Now turn your head side to side"
	default:
		return ""
	}
}
