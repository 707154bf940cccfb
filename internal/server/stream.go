package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval is the poll interval of the MJPEG stream (~15 FPS).
const streamInterval = 66 * time.Millisecond

// FrameSource provides the latest annotated capture frame.
type FrameSource interface {
	Frame() ([]byte, uint64)
	WatchFrames() func()
}

// StreamHandler serves the annotated capture frames as MJPEG.
type StreamHandler struct {
	source FrameSource
}

// NewStreamHandler creates a new StreamHandler for the given source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams frames until the client goes away. A frame is only sent
// when it changed, so nothing is written between captures.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stop := h.source.WatchFrames()
	defer stop()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpeg, seq := h.source.Frame()
		if jpeg == nil || seq == sent {
			continue
		}
		sent = seq

		if err := writePart(w, jpeg); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
