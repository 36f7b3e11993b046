package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"studydesk/internal/progress"
)

const (
	defaultPort             = 8080
	defaultDataDir          = "data"
	defaultMaxWorkspaces    = 16
	defaultMaxUploadBytes   = 10 << 20
	defaultGenerationDelay  = 3000
	defaultUploadPeriodMs   = 500
	defaultGenerationPeriod = 300
	defaultTimeoutMs        = 10000
	defaultStepSize         = 10
)

// Config describes runtime configuration for the service.
type Config struct {
	Port              int        `yaml:"port"`
	DataDir           string     `yaml:"data_dir"`
	AllowedExtensions []string   `yaml:"allowed_extensions"`
	MaxUploadBytes    int64      `yaml:"max_upload_bytes"`
	MaxWorkspaces     int        `yaml:"max_workspaces"`
	MaxActiveUploads  int        `yaml:"max_active_uploads"`
	Upload            Simulation `yaml:"upload"`
	Generation        Simulation `yaml:"generation"`
}

// Simulation tunes one simulated pipeline.
type Simulation struct {
	StepSize  int              `yaml:"step_size"`
	PeriodMs  int              `yaml:"period_ms"`
	TimeoutMs int              `yaml:"timeout_ms"`
	Phases    []progress.Phase `yaml:"phases"`
	// WorkDelayMs is how long the simulated work behind each item runs.
	WorkDelayMs int `yaml:"work_delay_ms"`
}

// Policy converts the settings into a progress policy.
func (s Simulation) Policy() progress.Policy {
	return progress.Policy{
		StepSize: s.StepSize,
		Period:   time.Duration(s.PeriodMs) * time.Millisecond,
		Phases:   append([]progress.Phase(nil), s.Phases...),
		Timeout:  time.Duration(s.TimeoutMs) * time.Millisecond,
	}
}

// WorkDelay is WorkDelayMs as a duration.
func (s Simulation) WorkDelay() time.Duration {
	return time.Duration(s.WorkDelayMs) * time.Millisecond
}

// Default returns the dashboard defaults.
func Default() Config {
	return Config{
		Port:              defaultPort,
		DataDir:           defaultDataDir,
		AllowedExtensions: defaultExtensions(),
		MaxUploadBytes:    defaultMaxUploadBytes,
		MaxWorkspaces:     defaultMaxWorkspaces,
		Upload: Simulation{
			StepSize:  defaultStepSize,
			PeriodMs:  defaultUploadPeriodMs,
			TimeoutMs: defaultTimeoutMs,
			Phases:    progress.DefaultUploadPolicy().Phases,
		},
		Generation: Simulation{
			StepSize:    defaultStepSize,
			PeriodMs:    defaultGenerationPeriod,
			TimeoutMs:   defaultTimeoutMs,
			Phases:      progress.DefaultGenerationPolicy().Phases,
			WorkDelayMs: defaultGenerationDelay,
		},
	}
}

func defaultExtensions() []string {
	return []string{".pdf", ".doc", ".docx", ".txt"}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	// basic normalization
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.MaxWorkspaces < 1 {
		return cfg, fmt.Errorf("invalid max_workspaces: %d (must be >= 1)", cfg.MaxWorkspaces)
	}
	if cfg.MaxActiveUploads < 0 {
		return cfg, fmt.Errorf("invalid max_active_uploads: %d (must be >= 0)", cfg.MaxActiveUploads)
	}
	if cfg.MaxUploadBytes < 0 {
		return cfg, fmt.Errorf("invalid max_upload_bytes: %d", cfg.MaxUploadBytes)
	}
	cfg.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)
	if err := cfg.Upload.Policy().Validate(); err != nil {
		return cfg, fmt.Errorf("upload: %w", err)
	}
	if err := cfg.Generation.Policy().Validate(); err != nil {
		return cfg, fmt.Errorf("generation: %w", err)
	}
	if cfg.Generation.WorkDelayMs < 0 {
		return cfg, fmt.Errorf("invalid generation.work_delay_ms: %d", cfg.Generation.WorkDelayMs)
	}
	return cfg, nil
}

func normalizeExtensions(in []string) []string {
	if len(in) == 0 {
		return defaultExtensions()
	}
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, ext := range in {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	return normalized
}
