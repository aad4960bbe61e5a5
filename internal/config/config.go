package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/app"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Game Game `yaml:"game"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
		TokenTTL  string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Game holds the question lifecycle timings. Empty values fall back to the defaults.
type Game struct {
	ReadinessGrace  string `yaml:"readinessGrace"`
	AdvanceDelay    string `yaml:"advanceDelay"`
	MinParticipants int    `yaml:"minParticipants"`
	PersistTimeout  string `yaml:"persistTimeout"`
}

// Settings converts the section to scheduler settings.
func (g Game) Settings() app.Settings {
	s := app.DefaultSettings()
	s.ReadinessGrace = TTLDuration(g.ReadinessGrace, s.ReadinessGrace)
	s.AdvanceDelay = TTLDuration(g.AdvanceDelay, s.AdvanceDelay)
	s.PersistTimeout = TTLDuration(g.PersistTimeout, s.PersistTimeout)
	if g.MinParticipants > 0 {
		s.MinParticipants = g.MinParticipants
	}
	return s
}

// TokenTTL returns the admin token lifetime, 24h by default.
func (c Config) TokenTTL() time.Duration {
	return TTLDuration(c.Auth.TokenTTL, 24*time.Hour)
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
