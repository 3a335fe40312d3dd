// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

// changedFlags marks flags as given on the command line
type changedFlags map[string]bool

func (c changedFlags) Changed(name string) bool {
	return c[name]
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sextant.toml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultSettings(t *testing.T) {
	assert := assert.New(t)
	s := defaultSettings()

	assert.Equal(115200, s.Baud)
	assert.Equal(400, s.TimeoutMs)
	assert.Equal(duplex.DefaultMaxAttempts, s.MaxAttempts)
	assert.Equal(duplex.DefaultMaxPayload, s.MaxPayload)
	assert.Equal("info", s.LogLevel)
	assert.Nil(s.validate())
}

func TestLoadConfigFileOverlay(t *testing.T) {
	assert := assert.New(t)
	path := writeConfig(t, `
port = " /dev/ttyACM0 "
baud = 57600
timeout_ms = 250
max_attempts = 4
log_level = "debug"
name = "bench-a"
metrics_addr = ":9100"
`)

	s := defaultSettings()
	require.Nil(t, loadConfigFile(path, &s, changedFlags{}))

	assert.Equal("/dev/ttyACM0", s.Port)
	assert.Equal(57600, s.Baud)
	assert.Equal(250, s.TimeoutMs)
	assert.Equal(4, s.MaxAttempts)
	assert.Equal("debug", s.LogLevel)
	assert.Equal("bench-a", s.Name)
	assert.Equal(":9100", s.MetricsAddr)

	// Keys absent from the file keep their defaults
	assert.Equal(duplex.DefaultMaxPayload, s.MaxPayload)
	assert.Equal("", s.URL)
}

func TestLoadConfigFileFlagsWin(t *testing.T) {
	assert := assert.New(t)
	path := writeConfig(t, "baud = 9600\ntimeout_ms = 900\n")

	s := defaultSettings()
	s.Baud = 230400
	require.Nil(t, loadConfigFile(path, &s, changedFlags{"baud": true}))

	assert.Equal(230400, s.Baud)
	assert.Equal(900, s.TimeoutMs)
}

func TestLoadConfigFileErrors(t *testing.T) {
	s := defaultSettings()

	err := loadConfigFile(filepath.Join(t.TempDir(), "missing.toml"), &s, changedFlags{})
	assert.NotNil(t, err)

	err = loadConfigFile(writeConfig(t, "baud = \"fast\"\n"), &s, changedFlags{})
	assert.NotNil(t, err)

	err = loadConfigFile(writeConfig(t, "bauds = 9600\n"), &s, changedFlags{})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "bauds")
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *settings)
	}{
		{"timeout", func(s *settings) { s.TimeoutMs = 0 }},
		{"attempts", func(s *settings) { s.MaxAttempts = -1 }},
		{"payload", func(s *settings) { s.MaxPayload = 0 }},
		{"baud", func(s *settings) { s.Baud = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings()
			tt.mutate(&s)
			assert.NotNil(t, s.validate())
		})
	}
}

func TestEngineConfig(t *testing.T) {
	assert := assert.New(t)
	s := defaultSettings()
	s.TimeoutMs = 150
	s.MaxAttempts = 3
	s.MaxPayload = 64

	nop := zerolog.Nop()
	c := s.engineConfig(&nop, nil)
	assert.Equal(150*time.Millisecond, c.Timeout)
	assert.Equal(3, c.MaxAttempts)
	assert.Equal(64, c.MaxPayload)
	assert.Equal(1450*time.Millisecond, s.callTimeout())
}
