// Package logging configures the operator's go-pkgz/lgr logger. There is no
// HTTP surface in this repo, so unlike the service this was adapted from,
// there is no slog/JSON handler branch — just text logging to stdout/stderr
// or a file, with the same caller-info and secret-masking knobs.
package logging

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-pkgz/lgr"
)

const (
	levelTrace = "trace"
	levelDebug = "debug"
	levelInfo  = "info"
	levelWarn  = "warn"
	levelError = "error"

	outputStdout = "stdout"
	outputStderr = "stderr"
)

// Config controls the operator's logger. Level/Output are the knobs an
// operator realistically sets; CallerInfo and SecretMask exist for
// debugging and for keeping signing keys out of logs.
type Config struct {
	Level  string
	Output string

	CallerInfo      CallerConfig
	SecretMask      []string
	StackTraceError bool
	CustomTemplate  string
	CallerDepth     int
}

// CallerConfig controls caller information in logs.
type CallerConfig struct {
	Enabled  bool
	File     bool
	Function bool
	Package  bool
}

// New returns a logger at the given level, text format, stdout — the
// default for a quick start or a misconfigured Config.
func New(level string) lgr.L {
	logger, err := NewWithConfig(Config{Level: level, Output: outputStdout})
	if err != nil {
		return lgr.New(lgr.Debug, lgr.Msec, lgr.LevelBraces)
	}
	return logger
}

// NewWithConfig builds a logger from cfg, as parsed from internal/config.
func NewWithConfig(cfg Config) (lgr.L, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	output, err := getOutputWriter(cfg.Output)
	if err != nil {
		return nil, err
	}

	options := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.Out(output)}

	switch strings.ToLower(cfg.Level) {
	case levelTrace:
		options = append(options, lgr.Trace)
	case levelDebug:
		options = append(options, lgr.Debug)
	}

	if cfg.CallerInfo.Enabled {
		if cfg.CallerInfo.File {
			options = append(options, lgr.CallerFile)
		}
		if cfg.CallerInfo.Function {
			options = append(options, lgr.CallerFunc)
		}
		if cfg.CallerInfo.Package {
			options = append(options, lgr.CallerPkg)
		}
		if cfg.CallerDepth > 0 {
			options = append(options, lgr.CallerDepth(cfg.CallerDepth))
		}
	} else {
		level := strings.ToLower(cfg.Level)
		if level == levelTrace || level == levelDebug {
			options = append(options, lgr.CallerFile, lgr.CallerFunc)
		}
	}

	if len(cfg.SecretMask) > 0 {
		options = append(options, lgr.Secret(cfg.SecretMask...))
	}
	if cfg.StackTraceError {
		options = append(options, lgr.StackTraceOnError)
	}
	if cfg.CustomTemplate != "" {
		options = append(options, lgr.Format(cfg.CustomTemplate))
	}
	if strings.ToLower(cfg.Output) != outputStderr {
		options = append(options, lgr.Err(os.Stderr))
	}

	return lgr.New(options...), nil
}

func validateConfig(cfg Config) error {
	level := strings.ToLower(cfg.Level)
	validLevels := []string{levelTrace, levelDebug, levelInfo, levelWarn, levelError}
	if level != "" && !contains(validLevels, level) {
		return errors.New("invalid log level: " + cfg.Level + ", must be one of: trace, debug, info, warn, error")
	}
	if cfg.CallerDepth < 0 {
		return errors.New("caller depth must be non-negative, got: " + strconv.Itoa(cfg.CallerDepth))
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func getOutputWriter(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", outputStdout:
		return os.Stdout, nil
	case outputStderr:
		return os.Stderr, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, errors.New("failed to open log file " + output + ": " + err.Error())
		}
		return file, nil
	}
}
