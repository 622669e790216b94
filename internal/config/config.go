// Package config loads Facepalm Camera configuration from a JSON file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalid is returned by Validate when a field has an unusable value.
var ErrInvalid = errors.New("invalid config")

// Camera backends.
const (
	BackendOpenCV = "opencv"
	BackendV4L2   = "v4l2"
)

// CameraConfig selects and tunes the camera backend.
type CameraConfig struct {
	Backend  string `json:"backend"`
	Device   string `json:"device"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FPS      int    `json:"fps"`
	Rotation int    `json:"rotation"`
}

// PoseConfig configures the pose estimation service.
type PoseConfig struct {
	// Python is the interpreter for the pose service. Empty uses a venv
	// interpreter when one is found, then python3.
	Python        string  `json:"python"`
	Script        string  `json:"script"`
	MinVisibility float64 `json:"min_visibility"`
}

// SamplingConfig controls which frames reach the pose estimator.
type SamplingConfig struct {
	// WhileDisarmed keeps estimating poses while capture is not armed.
	WhileDisarmed bool `json:"while_disarmed"`
	// MotionThreshold is the percentage of changed pixels a frame needs
	// before it is analyzed. 0 disables the motion filter.
	MotionThreshold float64 `json:"motion_threshold"`
}

// Config is the complete application configuration.
type Config struct {
	LogLevel         string         `json:"log_level"`
	ListenAddr       string         `json:"listen_addr"`
	DataDir          string         `json:"data_dir"`
	OutputDir        string         `json:"output_dir"`
	PluginDir        string         `json:"plugin_dir"`
	StaticDir        string         `json:"static_dir"`
	Tray             bool           `json:"tray"`
	Camera           CameraConfig   `json:"camera"`
	Pose             PoseConfig     `json:"pose"`
	Sampling         SamplingConfig `json:"sampling"`
	CaptureTimeoutMs int            `json:"capture_timeout_ms"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".facepalm")

	return &Config{
		LogLevel:   "info",
		ListenAddr: ":8080",
		DataDir:    dataDir,
		OutputDir:  filepath.Join(home, "Pictures", "Facepalm Camera"),
		Tray:       false,
		Camera: CameraConfig{
			Backend: BackendOpenCV,
			Device:  "0",
			Width:   640,
			Height:  480,
			FPS:     15,
		},
		Pose: PoseConfig{
			MinVisibility: 0.5,
		},
		CaptureTimeoutMs: 2000,
	}
}

// DefaultPath returns ~/.config/facepalm/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "facepalm", "config.json"), nil
}

// Load reads the config file at path (DefaultPath when empty), fills missing
// fields from Default, applies environment overrides and validates the result.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Unmarshal over the defaults so that absent fields keep them
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"FACEPALM_LOG_LEVEL", &c.LogLevel},
		{"FACEPALM_LISTEN", &c.ListenAddr},
		{"FACEPALM_CAMERA_BACKEND", &c.Camera.Backend},
		{"FACEPALM_CAMERA_DEVICE", &c.Camera.Device},
		{"FACEPALM_OUTPUT_DIR", &c.OutputDir},
		{"FACEPALM_DATA_DIR", &c.DataDir},
	}

	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) fillDerived() {
	if c.PluginDir == "" && c.DataDir != "" {
		c.PluginDir = filepath.Join(c.DataDir, "plugins")
	}
}

// Validate reports the first unusable value as an ErrInvalid-wrapped error.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Camera.Backend) {
	case BackendOpenCV, BackendV4L2:
	default:
		return fmt.Errorf("%w: unknown camera backend %q", ErrInvalid, c.Camera.Backend)
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("%w: camera resolution %dx%d", ErrInvalid, c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.Rotation%90 != 0 {
		return fmt.Errorf("%w: camera rotation %d is not a multiple of 90", ErrInvalid, c.Camera.Rotation)
	}
	if c.Pose.MinVisibility < 0 || c.Pose.MinVisibility > 1 {
		return fmt.Errorf("%w: pose min_visibility %.2f outside [0,1]", ErrInvalid, c.Pose.MinVisibility)
	}
	if c.Sampling.MotionThreshold < 0 {
		return fmt.Errorf("%w: negative motion_threshold", ErrInvalid)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalid)
	}
	return nil
}

// DatabasePath returns the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "facepalm.db")
}

// CaptureTimeout returns CaptureTimeoutMs as a duration.
func (c *Config) CaptureTimeout() time.Duration {
	if c.CaptureTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.CaptureTimeoutMs) * time.Millisecond
}
