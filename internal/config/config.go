package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"season-quiz-service/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		// Threshold is the pass mark for seasons without their own minimum.
		Threshold    *int   `yaml:"defaultThreshold"`
		QuestionTTL  string `yaml:"questionTTL"`
		QueryTimeout string `yaml:"queryTimeout"`
		// Fixture seeds the in-memory stores when Postgres is not configured.
		Fixture string `yaml:"fixture"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path and overlays environment variables, including
// those from a .env file in the working directory. A missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Printf("config %s not found, using defaults", path)
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("QUIZ_DEFAULT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUIZ_DEFAULT_THRESHOLD: %w", err)
		}
		c.Quiz.Threshold = &n
	}
	return nil
}

// DefaultThreshold returns the configured pass mark or fallback when unset.
func (c Config) DefaultThreshold(fallback int) int {
	if c.Quiz.Threshold == nil {
		return fallback
	}
	return *c.Quiz.Threshold
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

// Fixture is seed data for seasons, questions and users.
type Fixture struct {
	Seasons   []domain.Season   `yaml:"seasons"`
	Questions []domain.Question `yaml:"questions"`
	Users     []domain.User     `yaml:"users"`
}

// LoadFixture reads a YAML fixture from path.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}
