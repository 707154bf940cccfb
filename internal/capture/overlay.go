package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	colorOK      = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorWarn    = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	colorText    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorShadow  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	overlayFont  = gocv.FontHersheySimplex
	overlayScale = 0.6
)

// DrawOverlay annotates a frame in place with the face box, the current
// instruction and the challenge counters.
func DrawOverlay(frame *gocv.Mat, st Status) {
	if frame == nil || frame.Empty() {
		return
	}

	if st.FacePresent && !st.Box.Empty() {
		c := colorWarn
		if st.Positioned() {
			c = colorOK
		}
		gocv.Rectangle(frame, st.Box, c, 2)
	}

	putText(frame, st.Instruction, image.Pt(10, 25))

	counters := fmt.Sprintf("Blinks %d/%d  Moves %d/%d  Samples %d/%d  %ds",
		st.Blinks, st.RequiredBlinks,
		st.HeadMoves, st.RequiredHeadMoves,
		st.Samples, st.Required,
		int(st.Remaining.Seconds()))
	putText(frame, counters, image.Pt(10, frame.Rows()-12))
}

func putText(frame *gocv.Mat, text string, at image.Point) {
	if text == "" {
		return
	}
	gocv.PutText(frame, text, at.Add(image.Pt(1, 1)), overlayFont, overlayScale, colorShadow, 3)
	gocv.PutText(frame, text, at, overlayFont, overlayScale, colorText, 1)
}

// EncodeJPEG encodes a frame for the preview stream.
func EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("encode jpeg: empty frame")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
