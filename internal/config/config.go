// Package config assembles process configuration from a YAML file, .env files
// and environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
	"github.com/xyproto/randomstring"

	"go-elevator-controller/pkg/elevator"
	"go-elevator-controller/pkg/journal"
)

const idLength = 8

// Environment variables read by Load.
const (
	EnvConfigFile   = "ELEVATOR_CONFIG"
	EnvPort         = "PORT"
	EnvID           = "ELEVATOR_ID"
	EnvLogFile      = "ELEVATOR_LOG_FILE"
	EnvInitialFloor = "ELEVATOR_INITIAL_FLOOR"
)

// File mirrors the YAML config file. Durations use time.ParseDuration syntax.
type File struct {
	ID           string `yaml:"id"`
	Port         string `yaml:"port"`
	LogFile      string `yaml:"logFile"`
	InitialFloor *int   `yaml:"initialFloor"`
	MinFloor     int    `yaml:"minFloor"`
	MaxFloor     int    `yaml:"maxFloor"`
	TravelTime   string `yaml:"travelTime"`
	DwellTime    string `yaml:"dwellTime"`
}

// AppConfig is the resolved configuration of one process.
type AppConfig struct {
	Port     string
	LogFile  string
	Elevator elevator.Config
}

// LoadDotEnv loads .env style files into the environment. Missing files are skipped,
// variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv loads .env, then the file named by ELEVATOR_CONFIG (if any).
func FromEnv() (*AppConfig, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return Load(os.Getenv(EnvConfigFile))
}

// Load builds the configuration from defaults, the optional YAML file at path,
// and environment overrides.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:     "8080",
		LogFile:  journal.DefaultFile,
		Elevator: elevator.DefaultConfig(),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := f.apply(cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvPort); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv(EnvID); v != "" {
		cfg.Elevator.ID = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(EnvInitialFloor); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvInitialFloor, err)
		}
		cfg.Elevator.InitialFloor = n
	}

	if cfg.Elevator.ID == "" {
		cfg.Elevator.ID = randomstring.EnglishFrequencyString(idLength)
	}
	return cfg, nil
}

func (f File) apply(cfg *AppConfig) error {
	if f.ID != "" {
		cfg.Elevator.ID = f.ID
	}
	if f.Port != "" {
		cfg.Port = f.Port
	}
	if f.LogFile != "" {
		cfg.LogFile = f.LogFile
	}
	if f.InitialFloor != nil {
		cfg.Elevator.InitialFloor = *f.InitialFloor
	}
	cfg.Elevator.MinFloor = f.MinFloor
	cfg.Elevator.MaxFloor = f.MaxFloor

	if f.TravelTime != "" {
		d, err := time.ParseDuration(f.TravelTime)
		if err != nil {
			return fmt.Errorf("travelTime: %w", err)
		}
		cfg.Elevator.TravelTime = d
	}
	if f.DwellTime != "" {
		d, err := time.ParseDuration(f.DwellTime)
		if err != nil {
			return fmt.Errorf("dwellTime: %w", err)
		}
		cfg.Elevator.DwellTime = d
	}
	return nil
}
