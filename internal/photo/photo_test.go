package photo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/facepalm/internal/capture"
	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/gesture"
	"github.com/ayusman/facepalm/internal/store"
)

type memCatalog struct {
	mu     sync.Mutex
	photos []*store.Photo
	err    error
}

func (c *memCatalog) Create(p *store.Photo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.photos = append(c.photos, p)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []event.Event
}

func (l *eventLog) Publish(e event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) last() event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func nv21() capture.RawFrame {
	return capture.BufferFrame(make([]byte, 32*24*3/2), capture.FormatNV21, 32, 24, 0)
}

// feed offers frames to the shutter until stop is closed.
func feed(s *capture.Shutter, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-time.After(2 * time.Millisecond):
			s.Offer(nv21())
		}
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.UTC), "2024-03-09-14-05-07-123.jpg"},
		{time.Date(2021, 12, 31, 23, 59, 59, 0, time.UTC), "2021-12-31-23-59-59-000.jpg"},
		{time.Date(2022, 1, 2, 3, 4, 5, 9e6, time.UTC), "2022-01-02-03-04-05-009.jpg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.t))
	}
}

func TestSaver_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	shutter := capture.NewShutter()
	catalog := &memCatalog{}
	events := &eventLog{}
	s := NewSaver(shutter, catalog, events, Config{OutputDir: dir})

	stop := make(chan struct{})
	defer close(stop)
	go feed(shutter, stop)

	intent := gesture.CaptureIntent{ID: "intent-1", Timestamp: time.Date(2024, 3, 9, 14, 5, 7, 123e6, time.Local)}
	p, err := s.Save(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "2024-03-09-14-05-07-123.jpg"), p.Path)
	assert.Equal(t, "intent-1", p.IntentID)
	assert.Equal(t, 32, p.Width)
	assert.Equal(t, 24, p.Height)
	assert.NotEmpty(t, p.ID)

	info, err := os.Stat(p.Path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.Len(t, catalog.photos, 1)
	assert.Equal(t, p.ID, catalog.photos[0].ID)

	e := events.last()
	assert.Equal(t, event.Saved, e.Kind)
	assert.Equal(t, "Saved. Not ready.", e.Label)
	assert.Equal(t, p.Path, e.Path)
	assert.Equal(t, p.ID, e.PhotoID)
}

func TestSaver_SameTimestampGetsUniqueName(t *testing.T) {
	dir := t.TempDir()
	shutter := capture.NewShutter()
	s := NewSaver(shutter, nil, nil, Config{OutputDir: dir})

	stop := make(chan struct{})
	defer close(stop)
	go feed(shutter, stop)

	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	first, err := s.Save(context.Background(), gesture.CaptureIntent{ID: "a", Timestamp: ts})
	require.NoError(t, err)
	second, err := s.Save(context.Background(), gesture.CaptureIntent{ID: "b", Timestamp: ts})
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, filepath.Join(dir, "2024-03-09-14-05-07-000-1.jpg"), second.Path)
}

func TestSaver_Timeout(t *testing.T) {
	events := &eventLog{}
	s := NewSaver(capture.NewShutter(), nil, events, Config{OutputDir: t.TempDir()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Save(ctx, gesture.CaptureIntent{ID: "x", Timestamp: time.Now()})
	assert.True(t, errors.Is(err, ErrNoFrame))

	e := events.last()
	assert.Equal(t, event.SaveFailed, e.Kind)
	assert.Equal(t, "Save failed", e.Label)
	assert.Equal(t, "x", e.IntentID)
	assert.NotEmpty(t, e.Error)
}

func TestSaver_CatalogFailureStillSaves(t *testing.T) {
	shutter := capture.NewShutter()
	events := &eventLog{}
	s := NewSaver(shutter, &memCatalog{err: errors.New("disk full")}, events, Config{OutputDir: t.TempDir()})

	stop := make(chan struct{})
	defer close(stop)
	go feed(shutter, stop)

	p, err := s.Save(context.Background(), gesture.CaptureIntent{ID: "x", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.FileExists(t, p.Path)
	assert.Equal(t, event.Saved, events.last().Kind)
}

func TestSaver_CaptureInBackground(t *testing.T) {
	dir := t.TempDir()
	shutter := capture.NewShutter()
	catalog := &memCatalog{}
	s := NewSaver(shutter, catalog, nil, Config{OutputDir: dir, Timeout: time.Second})

	stop := make(chan struct{})
	defer close(stop)
	go feed(shutter, stop)

	s.Capture(gesture.CaptureIntent{ID: "bg", Timestamp: time.Now()})
	s.Wait()

	require.Len(t, catalog.photos, 1)
	assert.Equal(t, "bg", catalog.photos[0].IntentID)
}

func TestOutputDir(t *testing.T) {
	root := t.TempDir()

	t.Run("preferred", func(t *testing.T) {
		want := filepath.Join(root, "pictures", "Facepalm Camera")
		got, err := OutputDir(want, filepath.Join(root, "fallback"))
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.DirExists(t, got)
	})

	t.Run("falls back when preferred cannot be created", func(t *testing.T) {
		blocker := filepath.Join(root, "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		fallback := filepath.Join(root, "fallback")
		got, err := OutputDir(filepath.Join(blocker, "sub"), fallback)
		require.NoError(t, err)
		assert.Equal(t, fallback, got)
	})

	t.Run("none usable", func(t *testing.T) {
		blocker := filepath.Join(root, "file2")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		_, err := OutputDir(filepath.Join(blocker, "a"), filepath.Join(blocker, "b"))
		assert.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := OutputDir("", "")
		assert.Error(t, err)
	})
}
