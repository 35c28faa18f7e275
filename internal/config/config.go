package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds persistent defaults loaded from config files.
type Config struct {
	Classify ClassifyConfig `yaml:"classify"`
	Render   RenderConfig   `yaml:"render"`
	Serve    ServeConfig    `yaml:"serve"`
	Kube     KubeConfig     `yaml:"kube"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ClassifyConfig holds classifier and input defaults.
type ClassifyConfig struct {
	DatePolicy   string `yaml:"date_policy"`
	Jobs         int    `yaml:"jobs"`
	MaxBytes     string `yaml:"max_bytes"`
	MaxLineBytes string `yaml:"max_line_bytes"`
}

// RenderConfig holds output defaults.
type RenderConfig struct {
	Format         string `yaml:"format"`
	ShowRejects    bool   `yaml:"show_rejects"`
	Redact         string `yaml:"redact"`
	RedactPatterns string `yaml:"redact_patterns"`
	Color          *bool  `yaml:"color"`
}

// ServeConfig holds HTTP service defaults.
type ServeConfig struct {
	Addr          string `yaml:"addr"`
	MaxUpload     string `yaml:"max_upload"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	UploadWait    string `yaml:"upload_wait"`
	AuditLog      string `yaml:"audit_log"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
}

// KubeConfig holds defaults for k8s:// sources.
type KubeConfig struct {
	Kubeconfig string `yaml:"kubeconfig"`
	TailLines  int64  `yaml:"tail_lines"`
}

// DefaultsConfig holds global defaults.
type DefaultsConfig struct {
	Timeout string `yaml:"timeout"`
	Verbose bool   `yaml:"verbose"`
}

// Load reads config from ~/.logsieve/config.yaml then CWD .logsieve.yaml.
// CWD config values override home config. Missing files are not errors.
// Environment variables (LOGSIEVE_*) override config file values.
func Load() *Config {
	cfg := &Config{}

	if home, err := os.UserHomeDir(); err == nil {
		_ = loadFile(filepath.Join(home, ".logsieve", "config.yaml"), cfg)
	}
	_ = loadFile(".logsieve.yaml", cfg)

	applyEnv(cfg)
	return cfg
}

// LoadFrom reads config from a specific path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOGSIEVE_DATE_POLICY"); v != "" {
		cfg.Classify.DatePolicy = v
	}
	if v := os.Getenv("LOGSIEVE_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Classify.Jobs = n
		}
	}
	if v := os.Getenv("LOGSIEVE_MAX_BYTES"); v != "" {
		cfg.Classify.MaxBytes = v
	}
	if v := os.Getenv("LOGSIEVE_MAX_LINE_BYTES"); v != "" {
		cfg.Classify.MaxLineBytes = v
	}
	if v := os.Getenv("LOGSIEVE_FORMAT"); v != "" {
		cfg.Render.Format = v
	}
	if v := os.Getenv("LOGSIEVE_SHOW_REJECTS"); v != "" {
		cfg.Render.ShowRejects = envBool(v)
	}
	if v := os.Getenv("LOGSIEVE_REDACT"); v != "" {
		cfg.Render.Redact = v
	}
	if v := os.Getenv("LOGSIEVE_REDACT_PATTERNS"); v != "" {
		cfg.Render.RedactPatterns = v
	}
	if v := os.Getenv("LOGSIEVE_COLOR"); v != "" {
		b := envBool(v)
		cfg.Render.Color = &b
	}
	// NO_COLOR wins over config files
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		b := false
		cfg.Render.Color = &b
	}
	if v := os.Getenv("LOGSIEVE_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	if v := os.Getenv("LOGSIEVE_SERVE_MAX_UPLOAD"); v != "" {
		cfg.Serve.MaxUpload = v
	}
	if v := os.Getenv("LOGSIEVE_SERVE_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Serve.MaxConcurrent = n
		}
	}
	if v := os.Getenv("LOGSIEVE_SERVE_UPLOAD_WAIT"); v != "" {
		cfg.Serve.UploadWait = v
	}
	if v := os.Getenv("LOGSIEVE_SERVE_AUDIT_LOG"); v != "" {
		cfg.Serve.AuditLog = v
	}
	if v := os.Getenv("LOGSIEVE_LOG_LEVEL"); v != "" {
		cfg.Serve.LogLevel = v
	}
	if v := os.Getenv("LOGSIEVE_LOG_FORMAT"); v != "" {
		cfg.Serve.LogFormat = v
	}
	if v := os.Getenv("KUBECONFIG"); v != "" && cfg.Kube.Kubeconfig == "" {
		cfg.Kube.Kubeconfig = v
	}
	if v := os.Getenv("LOGSIEVE_KUBECONFIG"); v != "" {
		cfg.Kube.Kubeconfig = v
	}
	if v := os.Getenv("LOGSIEVE_TIMEOUT"); v != "" {
		cfg.Defaults.Timeout = v
	}
	if v := os.Getenv("LOGSIEVE_VERBOSE"); v != "" {
		cfg.Defaults.Verbose = envBool(v)
	}
}

func envBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// ParseSize parses a byte size such as "64MB", "512KiB" or "1048576".
// Units are binary. Empty returns 0.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	upper := strings.ToUpper(s)
	units := []struct {
		suffix string
		mult   int64
	}{
		{"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
		{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
		{"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10},
		{"B", 1},
	}
	mult := int64(1)
	num := upper
	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			mult = u.mult
			num = strings.TrimSpace(strings.TrimSuffix(upper, u.suffix))
			break
		}
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int64(n * float64(mult)), nil
}
