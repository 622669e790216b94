// Package photo turns capture intents into JPEG files on disk and records
// them in the photo catalog.
package photo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/facepalm/internal/capture"
	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/gesture"
	"github.com/ayusman/facepalm/internal/log"
	"github.com/ayusman/facepalm/internal/store"
)

// Defaults for Config.
const (
	DefaultTimeout = 2 * time.Second
	DefaultQuality = 95
)

var (
	// ErrNoFrame is returned when no frame arrived before the capture timeout.
	ErrNoFrame = errors.New("no frame available")

	// ErrWriteFailed is returned when the image could not be encoded to disk.
	ErrWriteFailed = errors.New("failed to write image")
)

// Catalog records saved photos. store.PhotoRepository implements it.
type Catalog interface {
	Create(p *store.Photo) error
}

// Config holds Saver settings.
type Config struct {
	OutputDir string
	Timeout   time.Duration
	Quality   int
}

// Saver implements gesture.Capturer by keeping the next camera frame.
type Saver struct {
	shutter   *capture.Shutter
	catalog   Catalog
	publisher event.Publisher
	config    Config
	wg        sync.WaitGroup
}

// NewSaver creates a Saver. catalog and publisher may be nil.
func NewSaver(shutter *capture.Shutter, catalog Catalog, publisher event.Publisher, config Config) *Saver {
	if publisher == nil {
		publisher = event.Discard
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultQuality
	}
	return &Saver{
		shutter:   shutter,
		catalog:   catalog,
		publisher: publisher,
		config:    config,
	}
}

// Capture saves the photo for intent in the background.
func (s *Saver) Capture(intent gesture.CaptureIntent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()

		s.Save(ctx, intent)
	}()
}

// Wait blocks until every background save has finished.
func (s *Saver) Wait() {
	s.wg.Wait()
}

// Save waits for the next frame, writes it as a JPEG and records it.
// The outcome is published as a Saved or SaveFailed event.
func (s *Saver) Save(ctx context.Context, intent gesture.CaptureIntent) (*store.Photo, error) {
	p, err := s.save(ctx, intent)
	if err != nil {
		log.Error("photo save failed", "component", "photo", "intent", intent.ID, "error", err)
		e := event.New(event.SaveFailed).WithError(err)
		e.IntentID = intent.ID
		s.publisher.Publish(e)
		return nil, err
	}

	log.Info("photo saved", "component", "photo", "intent", intent.ID, "path", p.Path)
	e := event.New(event.Saved)
	e.IntentID = intent.ID
	e.PhotoID = p.ID
	e.Path = p.Path
	s.publisher.Publish(e)
	return p, nil
}

func (s *Saver) save(ctx context.Context, intent gesture.CaptureIntent) (*store.Photo, error) {
	frame, err := s.shutter.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer frame.Close()

	if err := os.MkdirAll(s.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	taken := intent.Timestamp
	if taken.IsZero() {
		taken = frame.Timestamp
	}
	path := uniquePath(filepath.Join(s.config.OutputDir, FileName(taken)))

	if !gocv.IMWriteWithParams(path, frame.Mat, []int{int(gocv.IMWriteJpegQuality), s.config.Quality}) {
		return nil, fmt.Errorf("%w: %s", ErrWriteFailed, path)
	}

	p := &store.Photo{
		ID:       uuid.NewString(),
		IntentID: intent.ID,
		Path:     path,
		Width:    frame.Width,
		Height:   frame.Height,
		TakenAt:  taken,
	}

	if s.catalog != nil {
		if err := s.catalog.Create(p); err != nil {
			// the file is on disk, so the capture still counts
			log.Warn("photo not cataloged", "component", "photo", "path", path, "error", err)
		}
	}

	return p, nil
}

// FileName returns the file name for a photo taken at t,
// formatted as yyyy-MM-dd-HH-mm-ss-SSS.jpg.
func FileName(t time.Time) string {
	return fmt.Sprintf("%s-%03d.jpg", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

// uniquePath appends -1, -2, ... before the extension while path exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// OutputDir returns the first of preferred and fallback that exists or can
// be created.
func OutputDir(preferred, fallback string) (string, error) {
	var errs []error
	for _, dir := range []string{preferred, fallback} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			errs = append(errs, err)
			continue
		}
		return dir, nil
	}
	if len(errs) == 0 {
		return "", errors.New("no output directory configured")
	}
	return "", fmt.Errorf("no usable output directory: %w", errors.Join(errs...))
}
