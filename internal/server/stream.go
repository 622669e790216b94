package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facepalm/internal/capture"
)

// previewInterval caps the preview at roughly 10 FPS.
const previewInterval = 100 * time.Millisecond

// StreamHandler serves MJPEG preview frames taken from the shutter.
type StreamHandler struct {
	shutter *capture.Shutter
}

// NewStreamHandler creates a new StreamHandler reading from shutter.
func NewStreamHandler(shutter *capture.Shutter) *StreamHandler {
	return &StreamHandler{shutter: shutter}
}

// ServeHTTP streams MJPEG frames to connected clients until they disconnect.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	for {
		frame, err := h.shutter.Next(ctx)
		if err != nil {
			return
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame.Mat)
		frame.Close()
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(previewInterval):
		}
	}
}
