package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/andresmejia3/gatekeeper/internal/recognition"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
	Storage     StorageConfig     `yaml:"storage"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type RecognitionConfig struct {
	Threshold       float64       `yaml:"threshold"`        // distance must be strictly below this
	RequiredMatches int           `yaml:"required_matches"` // confirmations needed to grant
	Timeout         time.Duration `yaml:"timeout"`
	Preview         bool          `yaml:"preview"` // show the annotated camera window
	Beep            bool          `yaml:"beep"`    // ring the terminal bell on grant
}

type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type DetectorConfig struct {
	CascadePath  string  `yaml:"cascade_path"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`  // smallest face edge in pixels
	FaceSize     int     `yaml:"face_size"` // edge of the normalized crop fed to the classifier
}

type EnrollmentConfig struct {
	Samples      int     `yaml:"samples"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
}

type StorageConfig struct {
	DatasetDir   string `yaml:"dataset_dir"`
	ModelPath    string `yaml:"model_path"`
	EventLogPath string `yaml:"event_log_path"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // PostgreSQL connection URL
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Recognition: RecognitionConfig{
			Threshold:       recognition.DefaultThreshold,
			RequiredMatches: recognition.DefaultRequiredMatches,
			Timeout:         recognition.DefaultTimeout,
			Preview:         true,
			Beep:            true,
		},
		Camera: CameraConfig{
			Device: 0,
			Width:  320,
			Height: 240,
		},
		Detector: DetectorConfig{
			CascadePath:  "haarcascade_frontalface_default.xml",
			ScaleFactor:  1.2,
			MinNeighbors: 5,
			MinSize:      60,
			FaceSize:     150,
		},
		Enrollment: EnrollmentConfig{
			Samples:      20,
			ScaleFactor:  1.3,
			MinNeighbors: 5,
		},
		Storage: StorageConfig{
			DatasetDir:   "dataset",
			ModelPath:    "model/classifier.xml",
			EventLogPath: "log_recognitions.csv",
		},
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/gatekeeper",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if path is non-empty), then the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides fields from GATEKEEPER_* variables and the database
// variables shared with the postgres container (DATABASE_URL, POSTGRES_*).
func (c *Config) applyEnv() error {
	var err error
	if c.Recognition.Threshold, err = envFloat("GATEKEEPER_THRESHOLD", c.Recognition.Threshold); err != nil {
		return err
	}
	if c.Recognition.RequiredMatches, err = envInt("GATEKEEPER_REQUIRED_MATCHES", c.Recognition.RequiredMatches); err != nil {
		return err
	}
	if c.Recognition.Timeout, err = envDuration("GATEKEEPER_TIMEOUT", c.Recognition.Timeout); err != nil {
		return err
	}
	if c.Camera.Device, err = envInt("GATEKEEPER_CAMERA_DEVICE", c.Camera.Device); err != nil {
		return err
	}
	c.Detector.CascadePath = envString("GATEKEEPER_CASCADE_PATH", c.Detector.CascadePath)
	c.Storage.DatasetDir = envString("GATEKEEPER_DATASET_DIR", c.Storage.DatasetDir)
	c.Storage.ModelPath = envString("GATEKEEPER_MODEL_PATH", c.Storage.ModelPath)
	c.Storage.EventLogPath = envString("GATEKEEPER_EVENT_LOG", c.Storage.EventLogPath)
	c.Logging.Level = envString("GATEKEEPER_LOG_LEVEL", c.Logging.Level)

	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	} else if url := postgresURLFromEnv(); url != "" {
		c.Database.URL = url
	}
	return nil
}

// postgresURLFromEnv builds a connection string from POSTGRES_* variables.
// It returns "" when POSTGRES_HOST is unset.
func postgresURLFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// Validate rejects configurations the recognition loop cannot run with.
func (c *Config) Validate() error {
	r := c.Recognition
	if r.Threshold < 0 {
		return fmt.Errorf("invalid threshold: must be >= 0, got %f", r.Threshold)
	}
	if r.RequiredMatches < 0 {
		return fmt.Errorf("invalid required matches: must be >= 0, got %d", r.RequiredMatches)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: must be positive, got %s", r.Timeout)
	}
	if c.Detector.ScaleFactor <= 1.0 || c.Enrollment.ScaleFactor <= 1.0 {
		return fmt.Errorf("invalid detector scale factor: must be > 1.0")
	}
	if c.Detector.FaceSize <= 0 {
		return fmt.Errorf("invalid face size: must be positive, got %d", c.Detector.FaceSize)
	}
	if c.Enrollment.Samples < 1 {
		return fmt.Errorf("invalid enrollment samples: must be >= 1, got %d", c.Enrollment.Samples)
	}
	if c.Storage.ModelPath == "" || c.Storage.DatasetDir == "" {
		return errors.New("model path and dataset dir are required")
	}
	return nil
}

// RecognitionPolicy returns the decision policy for a recognition session.
func (c *Config) RecognitionPolicy() recognition.Config {
	return recognition.Config{
		Threshold:       c.Recognition.Threshold,
		RequiredMatches: c.Recognition.RequiredMatches,
		Timeout:         c.Recognition.Timeout,
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// envDuration accepts Go durations ("30s") or a bare number of seconds.
func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
