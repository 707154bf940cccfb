package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstruction(t *testing.T) {
	base := Status{
		FacePresent:       true,
		Position:          PositionOK,
		RequiredBlinks:    3,
		RequiredHeadMoves: 2,
		Required:          3,
	}

	with := func(f func(*Status)) Status {
		s := base
		f(&s)
		return s
	}

	tests := []struct {
		name   string
		status Status
		prompt Prompt
		text   string
	}{
		{
			name:   "enough samples wins over everything",
			status: with(func(s *Status) { s.Samples = 3; s.FacePresent = false; s.Position = PositionNoFace }),
			prompt: PromptProgress,
			text:   "Captured 3/3 samples",
		},
		{
			name:   "no face",
			status: with(func(s *Status) { s.FacePresent = false; s.Position = PositionNoFace }),
			prompt: PromptPositionFace,
			text:   "Position your face in the frame",
		},
		{
			name:   "too small",
			status: with(func(s *Status) { s.Position = PositionTooSmall }),
			prompt: PromptMoveCloser,
			text:   "Move closer to the camera",
		},
		{
			name:   "off center",
			status: with(func(s *Status) { s.Position = PositionOffCenter; s.Blinks = 1 }),
			prompt: PromptCenter,
			text:   "Move to the center of the frame",
		},
		{
			name:   "blinks missing",
			status: with(func(s *Status) { s.Blinks = 1 }),
			prompt: PromptBlink,
			text:   "Blink naturally 3 times (1/3)",
		},
		{
			name:   "head moves missing",
			status: with(func(s *Status) { s.Blinks = 3; s.HeadMoves = 1 }),
			prompt: PromptTurnHead,
			text:   "Turn your head side to side (1/2)",
		},
		{
			name:   "challenge met",
			status: with(func(s *Status) { s.Blinks = 3; s.HeadMoves = 2 }),
			prompt: PromptHoldStill,
			text:   "Hold still",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.prompt, PromptFor(tt.status))
			require.Equal(t, tt.text, Instruction(tt.status))
		})
	}
}

func TestPhrase(t *testing.T) {
	require.Empty(t, Phrase(PromptProgress))
	require.Empty(t, Phrase(PromptHoldStill))
	require.Equal(t, "Please blink naturally", Phrase(PromptBlink))
	require.NotEmpty(t, Phrase(PromptPositionFace))
}

func TestPrompt_String(t *testing.T) {
	require.Equal(t, "turn_head", PromptTurnHead.String())
	require.Equal(t, "unknown", Prompt(-1).String())
	require.Equal(t, "unknown", Prompt(42).String())
}
