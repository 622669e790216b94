package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/facepalm/internal/app"
	"github.com/ayusman/facepalm/internal/event"
	"github.com/ayusman/facepalm/internal/pose"
	"github.com/ayusman/facepalm/internal/server"
	"github.com/ayusman/facepalm/internal/store"
	"github.com/ayusman/facepalm/testdata"
)

type photoList struct {
	Photos []struct {
		ID       string `json:"id"`
		IntentID string `json:"intent_id"`
		ImageURL string `json:"image_url"`
	} `json:"photos"`
	Total int `json:"total"`
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	estimator := pose.NewMockEstimator()
	estimator.SetPose(pose.NeutralPose())

	application := app.New(app.Config{
		Camera:          testdata.Camera(testdata.Flicker(4, 64, 48), 5*time.Millisecond),
		Estimator:       estimator,
		Store:           s,
		OutputDir:       filepath.Join(tmpDir, "photos"),
		CaptureTimeout:  time.Second,
		MotionThreshold: 1,
		PluginDir:       filepath.Join(tmpDir, "plugins"),
	})
	defer application.Close()

	if err := application.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}
	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	srv := server.New(server.Config{
		Store:      s,
		Controller: application,
		Bus:        application.Bus(),
		Shutter:    application.Shutter(),
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	client := ts.Client()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.Close()

	// wait for the server to register the client before publishing
	deadline := time.Now().Add(2 * time.Second)
	for srv.EventClients() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	readEvent := func(t *testing.T) event.Event {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		var e event.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return e
	}

	t.Run("Arm", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/arm", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /api/arm error = %v", err)
		}
		defer resp.Body.Close()

		var status app.Status
		json.NewDecoder(resp.Body).Decode(&status)
		if status.State != "armed" || status.Label != "Ready" {
			t.Errorf("status after arm = %+v", status)
		}

		if e := readEvent(t); e.Kind != event.Armed {
			t.Errorf("first event = %s, want armed", e.Kind)
		}
	})

	t.Run("NoPictureWithoutFacepalm", func(t *testing.T) {
		time.Sleep(50 * time.Millisecond)
		if n := application.Machine().Captures(); n != 0 {
			t.Errorf("captures = %d, want 0", n)
		}
	})

	var intentID string
	t.Run("FacepalmTakesPicture", func(t *testing.T) {
		estimator.SetPose(pose.FacepalmPose())

		detected := readEvent(t)
		if detected.Kind != event.Detected || detected.IntentID == "" {
			t.Fatalf("expected detected event with intent, got %+v", detected)
		}
		intentID = detected.IntentID

		saved := readEvent(t)
		if saved.Kind != event.Saved || saved.IntentID != intentID || saved.Path == "" {
			t.Fatalf("expected saved event for intent %s, got %+v", intentID, saved)
		}
		if saved.Label != "Saved. Not ready." {
			t.Errorf("saved label = %q", saved.Label)
		}
	})

	t.Run("PhotoListed", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/photos")
		if err != nil {
			t.Fatalf("GET /api/photos error = %v", err)
		}
		defer resp.Body.Close()

		var list photoList
		json.NewDecoder(resp.Body).Decode(&list)
		if list.Total != 1 || len(list.Photos) != 1 {
			t.Fatalf("photos = %+v, want exactly one", list)
		}
		if list.Photos[0].IntentID != intentID {
			t.Errorf("photo intent = %s, want %s", list.Photos[0].IntentID, intentID)
		}

		img, err := client.Get(ts.URL + list.Photos[0].ImageURL)
		if err != nil {
			t.Fatalf("GET image error = %v", err)
		}
		defer img.Body.Close()
		data, _ := io.ReadAll(img.Body)
		if !bytes.HasPrefix(data, []byte{0xff, 0xd8}) {
			t.Errorf("image is not a JPEG (%d bytes)", len(data))
		}
	})

	t.Run("DisarmedAfterCapture", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		defer resp.Body.Close()

		var status app.Status
		json.NewDecoder(resp.Body).Decode(&status)
		if status.State != "disarmed" || status.Captures != 1 {
			t.Errorf("status after capture = %+v", status)
		}
		if status.Sampler.Dispatched == 0 || status.Sampler.Idle == 0 {
			t.Errorf("sampler stats should show dispatched and idle frames: %+v", status.Sampler)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, _ := client.Get(ts.URL + "/api/health")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
		resp.Body.Close()
	})
}
