package app

import (
	"errors"
	"time"
)

// Commands the CLI can dispatch.
const (
	CommandValidate = "validate"
	CommandExecute  = "execute"
)

// Config holds everything an App instance needs to run one command.
type Config struct {
	Command    string
	ConfigPath string // hcl files: datasets, policies, connections

	PolicyName string
	RequestID  string
	Identities map[string]string

	LogFormat string
	LogLevel  string

	CacheAddr     string // redis address; empty selects the in-memory cache
	CachePassword string
	CacheDB       int
	ExecLogPath   string // sqlite file; empty selects the in-memory sink

	RetryCount     int
	RetryDelay     time.Duration
	ResultTTL      time.Duration
	RequestTimeout time.Duration
}

// NewConfig validates required fields and returns the config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	switch cfg.Command {
	case CommandValidate, CommandExecute:
	default:
		return nil, errors.New("command must be 'validate' or 'execute'")
	}
	if cfg.Command == CommandExecute && len(cfg.Identities) == 0 {
		return nil, errors.New("execute requires at least one -identity attribute=value")
	}
	return &cfg, nil
}
