// Package config loads mukha's settings from a YAML file and MUKHA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/liveness"
	"github.com/ayusman/mukha/internal/match"
	"github.com/ayusman/mukha/internal/voice"
)

// Defaults that are not owned by another package.
const (
	DirName             = ".mukha"
	FileName            = "config.yaml"
	RegistrationSamples = 5
	AuthSamples         = 3
	MaxDurationSec      = 30
	DefaultAddr         = "127.0.0.1:8765"
	PluginTimeoutMs     = 5000
	IdleFPS             = 5
	ActiveFPS           = 15
	IdleTimeoutMs       = 2000
	CooldownSec         = 10
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	Camera   capture.CameraConfig `yaml:"camera"`
	Detector detector.Config      `yaml:"detector"`
	Capture  CaptureConfig        `yaml:"capture"`
	Liveness liveness.Config      `yaml:"liveness"`
	Match    MatchConfig          `yaml:"match"`
	Voice    voice.Config         `yaml:"voice"`
	Store    StoreConfig          `yaml:"store"`
	Server   ServerConfig         `yaml:"server"`
	Plugins  PluginConfig         `yaml:"plugins"`
	Watch    WatchConfig          `yaml:"watch"`
	Log      LogConfig            `yaml:"log"`
}

// CaptureConfig sizes capture sessions.
type CaptureConfig struct {
	RegistrationSamples int          `yaml:"registration_samples"`
	AuthSamples         int          `yaml:"auth_samples"`
	MaxDurationSec      int          `yaml:"max_duration_sec"`
	Gate                capture.Gate `yaml:"gate"`
}

// MatchConfig holds the similarity threshold.
type MatchConfig struct {
	BaseThreshold float64 `yaml:"base_threshold"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type PluginConfig struct {
	Dir       string `yaml:"dir"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// WatchConfig drives the motion-gated watch loop.
type WatchConfig struct {
	IdleFPS         int     `yaml:"idle_fps"`
	ActiveFPS       int     `yaml:"active_fps"`
	IdleTimeoutMs   int     `yaml:"idle_timeout_ms"`
	MotionThreshold float64 `yaml:"motion_threshold"`
	CooldownSec     int     `yaml:"cooldown_sec"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Dir returns ~/.mukha, or .mukha when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), FileName)
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		Camera:   capture.DefaultCameraConfig(),
		Detector: detector.DefaultConfig(),
		Capture: CaptureConfig{
			RegistrationSamples: RegistrationSamples,
			AuthSamples:         AuthSamples,
			MaxDurationSec:      MaxDurationSec,
			Gate:                capture.DefaultGate(),
		},
		Liveness: liveness.DefaultConfig(),
		Match:    MatchConfig{BaseThreshold: match.BaseThreshold},
		Voice:    voice.DefaultConfig(),
		Store:    StoreConfig{Path: filepath.Join(dir, "mukha.db")},
		Server:   ServerConfig{Addr: DefaultAddr},
		Plugins:  PluginConfig{Dir: filepath.Join(dir, "plugins"), TimeoutMs: PluginTimeoutMs},
		Watch: WatchConfig{
			IdleFPS:         IdleFPS,
			ActiveFPS:       ActiveFPS,
			IdleTimeoutMs:   IdleTimeoutMs,
			MotionThreshold: capture.DefaultMotionThreshold,
			CooldownSec:     CooldownSec,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads the config file at path over the defaults, then applies
// MUKHA_* environment variables. An empty path reads DefaultPath if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays MUKHA_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("MUKHA_CAMERA", &cfg.Camera.Device)
	num("MUKHA_CAMERA_WIDTH", &cfg.Camera.Width)
	num("MUKHA_CAMERA_HEIGHT", &cfg.Camera.Height)
	str("MUKHA_FACE_SERVICE", &cfg.Detector.ScriptPath)
	str("MUKHA_PYTHON", &cfg.Detector.Python)
	str("MUKHA_ENCODER", &cfg.Detector.Encoder)
	str("MUKHA_MODELS_DIR", &cfg.Detector.ModelsDir)
	num("MUKHA_REGISTRATION_SAMPLES", &cfg.Capture.RegistrationSamples)
	num("MUKHA_AUTH_SAMPLES", &cfg.Capture.AuthSamples)
	num("MUKHA_MAX_DURATION_SEC", &cfg.Capture.MaxDurationSec)
	float("MUKHA_THRESHOLD", &cfg.Match.BaseThreshold)
	boolean("MUKHA_VOICE", &cfg.Voice.Enabled)
	str("MUKHA_VOICE_COMMAND", &cfg.Voice.Command)
	str("MUKHA_DB", &cfg.Store.Path)
	str("MUKHA_ADDR", &cfg.Server.Addr)
	str("MUKHA_STATIC_DIR", &cfg.Server.StaticDir)
	str("MUKHA_PLUGIN_DIR", &cfg.Plugins.Dir)
	float("MUKHA_MOTION_THRESHOLD", &cfg.Watch.MotionThreshold)
	num("MUKHA_COOLDOWN_SEC", &cfg.Watch.CooldownSec)
	str("MUKHA_LOG_LEVEL", &cfg.Log.Level)
	str("MUKHA_LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(errs...)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Camera.Width > 0 && c.Camera.Height > 0, "camera size %dx%d", c.Camera.Width, c.Camera.Height)
	check(c.Camera.FPS > 0, "camera fps %d", c.Camera.FPS)
	check(c.Detector.Encoder == "" || c.Detector.Encoder == detector.EncoderService || c.Detector.Encoder == detector.EncoderDlib,
		"detector encoder %q", c.Detector.Encoder)
	check(c.Detector.Encoder != detector.EncoderDlib || c.Detector.ModelsDir != "", "detector.models_dir is required for the dlib encoder")
	check(c.Capture.RegistrationSamples > 0, "capture.registration_samples %d", c.Capture.RegistrationSamples)
	check(c.Capture.AuthSamples > 0, "capture.auth_samples %d", c.Capture.AuthSamples)
	check(c.Capture.MaxDurationSec > 0, "capture.max_duration_sec %d", c.Capture.MaxDurationSec)
	check(c.Capture.Gate.MinFaceSize > 0, "capture.gate.min_face_size %d", c.Capture.Gate.MinFaceSize)
	check(c.Capture.Gate.CenterTolerance > 0 && c.Capture.Gate.CenterTolerance <= 1, "capture.gate.center_tolerance %g", c.Capture.Gate.CenterTolerance)
	check(c.Capture.Gate.MinSizeRatio < c.Capture.Gate.MaxSizeRatio, "capture.gate size ratio [%g, %g]", c.Capture.Gate.MinSizeRatio, c.Capture.Gate.MaxSizeRatio)
	check(c.Liveness.EARThreshold > 0, "liveness.ear_threshold %g", c.Liveness.EARThreshold)
	check(c.Liveness.HeadMoveThreshold > 0, "liveness.head_move_threshold %g", c.Liveness.HeadMoveThreshold)
	check(c.Liveness.RequiredBlinks > 0, "liveness.required_blinks %d", c.Liveness.RequiredBlinks)
	check(c.Liveness.RequiredHeadMoves > 0, "liveness.required_head_moves %d", c.Liveness.RequiredHeadMoves)
	check(c.Match.BaseThreshold > 0 && c.Match.BaseThreshold <= 1, "match.base_threshold %g", c.Match.BaseThreshold)
	check(c.Store.Path != "", "store.path is empty")
	check(c.Plugins.TimeoutMs > 0, "plugins.timeout_ms %d", c.Plugins.TimeoutMs)
	check(c.Watch.IdleFPS > 0 && c.Watch.ActiveFPS > 0, "watch fps %d/%d", c.Watch.IdleFPS, c.Watch.ActiveFPS)
	check(c.Watch.CooldownSec >= 0, "watch.cooldown_sec %d", c.Watch.CooldownSec)

	return errors.Join(errs...)
}
