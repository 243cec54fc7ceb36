package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger := New("debug")
	assert.NotNil(t, logger)
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  Config{Level: "debug", Output: "stdout"},
		},
		{
			name: "caller info configuration",
			cfg: Config{
				Level:  "trace",
				Output: "stdout",
				CallerInfo: CallerConfig{
					Enabled:  true,
					File:     true,
					Function: true,
					Package:  true,
				},
				CallerDepth: 2,
			},
		},
		{
			name: "secret masking and stack trace",
			cfg: Config{
				Level:           "debug",
				Output:          "stdout",
				SecretMask:      []string{"password", "token"},
				StackTraceError: true,
			},
		},
		{
			name:    "invalid log level",
			cfg:     Config{Level: "invalid", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "negative caller depth",
			cfg:     Config{Level: "info", Output: "stdout", CallerDepth: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
				logger.Logf("INFO test message for %s", tt.name)
			}
		})
	}
}

func TestNewWithConfigFileOutput(t *testing.T) {
	tempDir := t.TempDir()
	logFile := filepath.Join(tempDir, "test.log")

	logger, err := NewWithConfig(Config{Level: "info", Output: logFile})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Logf("INFO test message")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test message")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		errMsg  string
	}{
		{name: "valid config", cfg: Config{Level: "debug", Output: "stdout"}},
		{name: "empty config", cfg: Config{}},
		{name: "invalid level", cfg: Config{Level: "invalid"}, wantErr: true, errMsg: "invalid log level"},
		{name: "negative caller depth", cfg: Config{CallerDepth: -1}, wantErr: true, errMsg: "caller depth must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetOutputWriter(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "stdout", output: "stdout"},
		{name: "stderr", output: "stderr"},
		{name: "empty defaults to stdout", output: ""},
		{name: "invalid file path", output: "/invalid/path/that/should/not/exist", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, err := getOutputWriter(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, writer)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, writer)
			}
		})
	}

	t.Run("valid file path", func(t *testing.T) {
		tempDir := t.TempDir()
		logFile := filepath.Join(tempDir, "test.log")

		writer, err := getOutputWriter(logFile)
		assert.NoError(t, err)
		assert.NotNil(t, writer)

		if file, ok := writer.(*os.File); ok {
			_ = file.Close()
		}
	})
}
