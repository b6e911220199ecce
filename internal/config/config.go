// Package config loads runtime configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lox/sunburntimer/internal/burn"
	"github.com/lox/sunburntimer/internal/tz"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Forecast    ForecastConfig    `yaml:"forecast"`
	Calculation CalculationConfig `yaml:"calculation"`
	Narrative   NarrativeConfig   `yaml:"narrative"`
	FTP         FTPConfig         `yaml:"ftp"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ForecastConfig points at the Open-Meteo endpoints. StaleAfter is how old a cached
// forecast may be before a calculation refetches it.
type ForecastConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	GeocodingURL  string        `yaml:"geocodingUrl"`
	AirQualityURL string        `yaml:"airQualityUrl"`
	Days          int           `yaml:"days"`
	StaleAfter    time.Duration `yaml:"staleAfter"`
}

// CalculationConfig tunes the burn integrator. Zero values fall back to the burn defaults,
// except EveningCutoffHour where 0 is midnight and only an absent key is unset.
type CalculationConfig struct {
	MaxPoints               int   `yaml:"maxPoints"`
	EveningCutoffHour       *int  `yaml:"eveningCutoffHour"`
	MinPointsForEveningStop int   `yaml:"minPointsForEveningStop"`
	LowUVRamp               *bool `yaml:"lowUVRamp"`
	Resolutions             []int `yaml:"resolutions"`
}

type NarrativeConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
}

// FTPConfig describes an optional FTP drop of hourly UV CSV files. The series is stored
// against a location created from Name, Latitude, Longitude and Timezone.
type FTPConfig struct {
	Address   string        `yaml:"address"`
	User      string        `yaml:"user"`
	Password  string        `yaml:"password"`
	Path      string        `yaml:"path"`
	Timeout   time.Duration `yaml:"timeout"`
	Name      string        `yaml:"name"`
	Latitude  float64       `yaml:"latitude"`
	Longitude float64       `yaml:"longitude"`
	Timezone  string        `yaml:"timezone"`
}

type ScheduleConfig struct {
	RefreshInterval time.Duration `yaml:"refreshInterval"`
	Retention       time.Duration `yaml:"retention"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/sunburntimer.db",
		},
		Forecast: ForecastConfig{
			BaseURL:       "https://api.open-meteo.com",
			GeocodingURL:  "https://geocoding-api.open-meteo.com",
			AirQualityURL: "https://air-quality-api.open-meteo.com",
			Days:          3,
			StaleAfter:    time.Hour,
		},
		Narrative: NarrativeConfig{
			Model: "gpt-4o-mini",
		},
		FTP: FTPConfig{
			User:     "anonymous",
			Password: "anonymous",
			Timeout:  30 * time.Second,
			Timezone: "UTC",
		},
		Schedule: ScheduleConfig{
			RefreshInterval: time.Hour,
			Retention:       72 * time.Hour,
		},
	}
}

// Load applies defaults, then the YAML file at path (if non-empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUNBURN_HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("SUNBURN_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SUNBURN_FORECAST_URL"); v != "" {
		cfg.Forecast.BaseURL = v
	}
	if v := os.Getenv("SUNBURN_STALE_AFTER"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Forecast.StaleAfter = parsed
		}
	}
	if v := os.Getenv("SUNBURN_MAX_POINTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Calculation.MaxPoints = parsed
		}
	}
	if v := os.Getenv("SUNBURN_LOW_UV_RAMP"); v != "" {
		ramp := v == "1" || strings.EqualFold(v, "true")
		cfg.Calculation.LowUVRamp = &ramp
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	}
	if v := os.Getenv("SUNBURN_NARRATIVE_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}
	if v := os.Getenv("SUNBURN_FTP_ADDRESS"); v != "" {
		cfg.FTP.Address = v
	}
	if v := os.Getenv("SUNBURN_FTP_PASSWORD"); v != "" {
		cfg.FTP.Password = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Forecast.Days < 1 || c.Forecast.Days > 16 {
		errs = append(errs, fmt.Errorf("forecast.days must be between 1 and 16, got %d", c.Forecast.Days))
	}
	if c.Calculation.MaxPoints < 0 {
		errs = append(errs, errors.New("calculation.maxPoints must not be negative"))
	}
	if h := c.Calculation.EveningCutoffHour; h != nil && (*h < 0 || *h > 23) {
		errs = append(errs, fmt.Errorf("calculation.eveningCutoffHour must be between 0 and 23, got %d", *h))
	}
	for _, r := range c.Calculation.Resolutions {
		if r <= 0 || r > 60 {
			errs = append(errs, fmt.Errorf("calculation.resolutions: %d slices per hour is out of range", r))
		}
	}
	if c.Narrative.Enabled && c.Narrative.APIKey == "" {
		errs = append(errs, errors.New("narrative.apiKey is required when narrative is enabled"))
	}
	if c.FTP.Address != "" && c.FTP.Path == "" {
		errs = append(errs, errors.New("ftp.path is required when ftp.address is set"))
	}
	if c.FTP.Address != "" && c.FTP.Name == "" {
		errs = append(errs, errors.New("ftp.name is required when ftp.address is set"))
	}
	if c.FTP.Timezone != "" && !tz.Valid(c.FTP.Timezone) {
		errs = append(errs, fmt.Errorf("ftp.timezone %q is not a known zone", c.FTP.Timezone))
	}
	if c.Schedule.RefreshInterval < time.Minute {
		errs = append(errs, errors.New("schedule.refreshInterval must be at least 1m"))
	}
	return errors.Join(errs...)
}

// BurnOptions maps the calculation section onto burn.Options with tz.Hour as the local clock.
func (c *Config) BurnOptions() burn.Options {
	opts := burn.DefaultOptions()
	calc := c.Calculation
	if calc.MaxPoints > 0 {
		opts.MaxPoints = calc.MaxPoints
	}
	if calc.EveningCutoffHour != nil {
		opts.EveningCutoffHour = *calc.EveningCutoffHour
	}
	if calc.MinPointsForEveningStop > 0 {
		opts.MinPointsForEveningStop = calc.MinPointsForEveningStop
	}
	if calc.LowUVRamp != nil {
		opts.LowUVRamp = *calc.LowUVRamp
	}
	if len(calc.Resolutions) > 0 {
		opts.Resolutions = append([]int(nil), calc.Resolutions...)
	}
	opts.LocalHour = tz.Hour
	return opts
}
