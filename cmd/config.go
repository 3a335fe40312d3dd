// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

// settings are the values shared by every command
type settings struct {
	Port        string
	Baud        int
	TCP         string
	URL         string
	Username    string
	NoSSLVerify bool

	LogLevel    string
	TimeoutMs   int
	MaxAttempts int
	MaxPayload  int
	MetricsAddr string
	Name        string
}

func defaultSettings() settings {
	d := duplex.DefaultConfig()
	return settings{
		Baud:        115200,
		LogLevel:    "info",
		TimeoutMs:   int(d.Timeout / time.Millisecond),
		MaxAttempts: d.MaxAttempts,
		MaxPayload:  d.MaxPayload,
		Name:        "sextant",
	}
}

// config.toml key mapping to settings
type fileConfig struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	TCP         string `toml:"tcp"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
	LogLevel    string `toml:"log_level"`
	TimeoutMs   int    `toml:"timeout_ms"`
	MaxAttempts int    `toml:"max_attempts"`
	MaxPayload  int    `toml:"max_payload"`
	MetricsAddr string `toml:"metrics_addr"`
	Name        string `toml:"name"`
}

// flagSet reports whether a flag was set on the command line
type flagSet interface {
	Changed(name string) bool
}

// loadConfigFile overlays keys present in the file onto s. A key is skipped
// when its flag was given explicitly.
func loadConfigFile(path string, s *settings, flags flagSet) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	use := func(key, flag string) bool {
		return meta.IsDefined(key) && !flags.Changed(flag)
	}

	if use("port", "port") {
		s.Port = strings.TrimSpace(raw.Port)
	}
	if use("baud", "baud") {
		s.Baud = raw.Baud
	}
	if use("tcp", "tcp") {
		s.TCP = strings.TrimSpace(raw.TCP)
	}
	if use("url", "url") {
		s.URL = strings.TrimSpace(raw.URL)
	}
	if use("username", "username") {
		s.Username = strings.TrimSpace(raw.Username)
	}
	if use("no_ssl_verify", "no-ssl-verify") {
		s.NoSSLVerify = raw.NoSSLVerify
	}
	if use("log_level", "log-level") {
		s.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if use("timeout_ms", "timeout-ms") {
		s.TimeoutMs = raw.TimeoutMs
	}
	if use("max_attempts", "attempts") {
		s.MaxAttempts = raw.MaxAttempts
	}
	if use("max_payload", "max-payload") {
		s.MaxPayload = raw.MaxPayload
	}
	if use("metrics_addr", "metrics-addr") {
		s.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if use("name", "name") {
		s.Name = strings.TrimSpace(raw.Name)
	}
	return nil
}

func (s settings) validate() error {
	if s.TimeoutMs <= 0 {
		return fmt.Errorf("timeout must be positive, got %d ms", s.TimeoutMs)
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("attempts must be positive, got %d", s.MaxAttempts)
	}
	if s.MaxPayload <= 0 {
		return fmt.Errorf("max payload must be positive, got %d", s.MaxPayload)
	}
	if s.Baud <= 0 {
		return fmt.Errorf("baud rate must be positive, got %d", s.Baud)
	}
	return nil
}

// engineConfig converts settings to an engine configuration
func (s settings) engineConfig(log *zerolog.Logger, observer func(duplex.Event)) duplex.Config {
	return duplex.Config{
		MaxPayload:  s.MaxPayload,
		Timeout:     time.Duration(s.TimeoutMs) * time.Millisecond,
		MaxAttempts: s.MaxAttempts,
		Logger:      log,
		Observer:    observer,
	}
}

// callTimeout bounds a complete send: every attempt plus a margin
func (s settings) callTimeout() time.Duration {
	return time.Duration(s.TimeoutMs*s.MaxAttempts)*time.Millisecond + time.Second
}
