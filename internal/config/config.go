package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/fusionn-batch/pkg/logger"
)

const envPrefix = "FUSIONN_BATCH"

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Constraints ConstraintsConfig `mapstructure:"constraints"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Translate   TranslateConfig   `mapstructure:"translate"`
	Output      OutputConfig      `mapstructure:"output"`
	Batch       BatchConfig       `mapstructure:"batch"`
	Apprise     AppriseConfig     `mapstructure:"apprise"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ConstraintsConfig holds upload limits per context.
type ConstraintsConfig struct {
	Transcription LimitConfig `mapstructure:"transcription"` // single-file uploads
	Batch         LimitConfig `mapstructure:"batch"`
}

type LimitConfig struct {
	AllowedMIMETypes []string `mapstructure:"allowed_mime_types"`
	MaxFileBytes     int64    `mapstructure:"max_file_bytes"`
	MaxFiles         int      `mapstructure:"max_files"`       // batch only
	MaxTotalBytes    int64    `mapstructure:"max_total_bytes"` // batch only
}

type BackendConfig struct {
	// Provider: "simulated" (timer-driven) or "remote" (HTTP processing service)
	Provider string `mapstructure:"provider"`

	// Remote settings
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms"`

	// Simulated settings
	TickMs      int     `mapstructure:"tick_ms"`
	MinDelta    float64 `mapstructure:"min_delta"`
	MaxDelta    float64 `mapstructure:"max_delta"`
	FailureRate float64 `mapstructure:"failure_rate"` // 0-1 per tick

	// StepTimeoutMs fails a job when no progress arrives in time (0 = wait forever)
	StepTimeoutMs int `mapstructure:"step_timeout_ms"`
}

type LanguageConfig struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
}

type TranslateConfig struct {
	RateLimitRPM int              `mapstructure:"rate_limit_rpm"` // Requests per minute (0 = no limit)
	Languages    []LanguageConfig `mapstructure:"languages"`      // empty = built-in list
}

type OutputConfig struct {
	TranscriptFormats  []string `mapstructure:"transcript_formats"`
	TranslationFormats []string `mapstructure:"translation_formats"`
}

type BatchConfig struct {
	// AdvanceThreshold is the progress at which the next file is started.
	AdvanceThreshold float64 `mapstructure:"advance_threshold"`
}

type AppriseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"` // Apprise API URL
	Key     string `mapstructure:"key"`      // Apprise config key
	Tag     string `mapstructure:"tag"`      // Tag to filter services
}

const mb = 1024 * 1024

var defaultMIMETypes = []string{
	"audio/mpeg", "audio/mp3", "audio/wav", "audio/x-wav", "audio/mp4", "audio/x-m4a",
	"audio/ogg", "audio/flac", "audio/webm",
	"video/mp4", "video/webm", "video/quicktime",
}

// setDefaults registers every default so a sparse config file still works.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("constraints.transcription.allowed_mime_types", defaultMIMETypes)
	v.SetDefault("constraints.transcription.max_file_bytes", 100*mb)
	v.SetDefault("constraints.batch.allowed_mime_types", defaultMIMETypes)
	v.SetDefault("constraints.batch.max_file_bytes", 50*mb)
	v.SetDefault("constraints.batch.max_files", 10)
	v.SetDefault("constraints.batch.max_total_bytes", 500*mb)

	v.SetDefault("backend.provider", "simulated")
	v.SetDefault("backend.poll_interval_ms", 1000)
	v.SetDefault("backend.tick_ms", 200)
	v.SetDefault("backend.min_delta", 5)
	v.SetDefault("backend.max_delta", 15)
	v.SetDefault("backend.failure_rate", 0)
	v.SetDefault("backend.step_timeout_ms", 30000)

	v.SetDefault("translate.rate_limit_rpm", 0)

	v.SetDefault("output.transcript_formats", []string{"txt", "docx", "srt", "vtt"})
	v.SetDefault("output.translation_formats", []string{"mp3", "wav", "srt"})

	v.SetDefault("batch.advance_threshold", 95)

	v.SetDefault("apprise.enabled", false)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// ChangeCallback is called when config changes.
type ChangeCallback func(old, new *Config)

// Manager handles config loading and hot-reload.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	cfg       *Config
	callbacks []ChangeCallback
	stop      chan struct{}
	stopOnce  sync.Once

	path        string
	lastModTime time.Time
}

// NewManager creates a config manager with hot-reload support via polling.
func NewManager(path string) (*Manager, error) {
	return newManager(path, 10*time.Second)
}

func newManager(path string, interval time.Duration) (*Manager, error) {
	v, cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	var lastMod time.Time
	if stat, err := os.Stat(path); err == nil {
		lastMod = stat.ModTime()
	}

	m := &Manager{
		v:           v,
		cfg:         cfg,
		stop:        make(chan struct{}),
		path:        path,
		lastModTime: lastMod,
	}

	go m.pollForChanges(interval)

	logger.Infof("📋 Config loaded (polling every %v for changes)", interval)

	return m, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) OnChange(cb ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) pollForChanges(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			stat, err := os.Stat(m.path)
			if err != nil {
				continue
			}

			m.mu.RLock()
			lastMod := m.lastModTime
			m.mu.RUnlock()

			if stat.ModTime().After(lastMod) {
				logger.Infof("🔄 Config file changed, reloading...")

				if err := m.v.ReadInConfig(); err != nil {
					logger.Errorf("❌ Failed to re-read config: %v", err)
					continue
				}

				m.mu.Lock()
				m.lastModTime = stat.ModTime()
				m.mu.Unlock()

				m.reload()
			}
		}
	}
}

func (m *Manager) reload() {
	newCfg, err := decode(m.v)
	if err != nil {
		logger.Errorf("❌ Failed to reload config: %v", err)
		return
	}

	m.mu.Lock()
	oldCfg := m.cfg
	m.cfg = newCfg
	callbacks := m.callbacks
	m.mu.Unlock()

	logChanges(oldCfg, newCfg, "")

	for _, cb := range callbacks {
		cb(oldCfg, newCfg)
	}
}

func logChanges(old, cur any, prefix string) {
	oldVal := reflect.ValueOf(old)
	newVal := reflect.ValueOf(cur)

	if oldVal.Kind() == reflect.Ptr {
		oldVal = oldVal.Elem()
	}
	if newVal.Kind() == reflect.Ptr {
		newVal = newVal.Elem()
	}

	if oldVal.Kind() != reflect.Struct {
		return
	}

	t := oldVal.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		oldField := oldVal.Field(i)
		newField := newVal.Field(i)

		fieldName := field.Name
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		if oldField.Kind() == reflect.Struct {
			logChanges(oldField.Interface(), newField.Interface(), fieldName)
			continue
		}

		if !reflect.DeepEqual(oldField.Interface(), newField.Interface()) {
			// keep secrets out of the log
			if strings.Contains(strings.ToLower(field.Name), "key") {
				logger.Infof("  📝 %s: (changed)", fieldName)
				continue
			}
			logger.Infof("  📝 %s: %v → %v", fieldName, oldField.Interface(), newField.Interface())
		}
	}
}

// load reads path once. The viper instance is kept by the Manager for reloads.
func load(path string) (*viper.Viper, *Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}
