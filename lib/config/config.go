// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the lobby service configuration.
//
// Configuration comes from a single YAML file specified by the
// GRANGE_CONFIG environment variable or an explicit path passed to
// LoadFile. There is no automatic discovery: deterministic, auditable
// configuration with no hidden overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full lobby service configuration.
type Config struct {
	// Homeserver configures the Matrix connection.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Rooms names the well-known rooms the service watches.
	Rooms RoomsConfig `yaml:"rooms"`

	// Privilege configures who counts as a privileged actor.
	Privilege PrivilegeConfig `yaml:"privilege"`

	// Steam configures profile verification.
	Steam SteamConfig `yaml:"steam"`

	// Reservation configures the booking fan-out.
	Reservation ReservationConfig `yaml:"reservation"`

	// Activation selects event activation behavior.
	Activation ActivationConfig `yaml:"activation"`

	// SocketPath is the admin socket. Default: /run/grange/lobby.sock.
	SocketPath string `yaml:"socket_path"`
}

// HomeserverConfig configures the Matrix connection. Exactly one of
// AccessToken and AccessTokenFile must be set.
type HomeserverConfig struct {
	// URL is the homeserver base URL.
	URL string `yaml:"url"`

	// UserID is the service account's fully-qualified user ID.
	UserID string `yaml:"user_id"`

	// AccessToken is the service account token, inline.
	AccessToken string `yaml:"access_token"`

	// AccessTokenFile reads the token from a file, for deployments
	// that keep secrets out of config files.
	AccessTokenFile string `yaml:"access_token_file"`
}

// Token returns the access token, reading AccessTokenFile if needed.
func (h *HomeserverConfig) Token() (string, error) {
	if h.AccessToken != "" {
		return h.AccessToken, nil
	}
	if h.AccessTokenFile == "" {
		return "", fmt.Errorf("config: neither access_token nor access_token_file is set")
	}
	data, err := os.ReadFile(h.AccessTokenFile)
	if err != nil {
		return "", fmt.Errorf("config: reading access token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("config: access token file %s is empty", h.AccessTokenFile)
	}
	return token, nil
}

// RoomsConfig names the rooms the service watches.
type RoomsConfig struct {
	// Signup hosts verification welcomes and link submissions.
	Signup string `yaml:"signup"`

	// Members is the room whose joined membership carries the
	// verified-member tag.
	Members string `yaml:"members"`
}

// PrivilegeConfig configures privileged-actor detection.
type PrivilegeConfig struct {
	// PowerThreshold is the minimum power level in the members room
	// that counts as privileged. Default: 50.
	PowerThreshold int `yaml:"power_threshold"`
}

// SteamConfig configures profile verification. Exactly one of APIKey
// and APIKeyFile must be set.
type SteamConfig struct {
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`

	// RequestsPerSecond caps Web API calls. Default: 1.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Key returns the API key, reading APIKeyFile if needed.
func (s *SteamConfig) Key() (string, error) {
	if s.APIKey != "" {
		return s.APIKey, nil
	}
	if s.APIKeyFile == "" {
		return "", fmt.Errorf("config: neither api_key nor api_key_file is set")
	}
	data, err := os.ReadFile(s.APIKeyFile)
	if err != nil {
		return "", fmt.Errorf("config: reading Steam API key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("config: Steam API key file %s is empty", s.APIKeyFile)
	}
	return key, nil
}

// ReservationConfig configures the booking fan-out.
type ReservationConfig struct {
	// Staff are the user IDs that receive reservation requests.
	Staff []string `yaml:"staff"`
}

// ActivationConfig selects event activation behavior.
type ActivationConfig struct {
	// EmptyEvent: "cancel" or "activate". Default: cancel.
	EmptyEvent string `yaml:"empty_event"`

	// AfterStart: "delete" or "retain". Default: delete.
	AfterStart string `yaml:"after_start"`
}

// Default returns a Config with defaults applied. Fields without a
// sensible default (homeserver, rooms, steam key) stay empty and fail
// Validate.
func Default() *Config {
	return &Config{
		Privilege:  PrivilegeConfig{PowerThreshold: 50},
		Steam:      SteamConfig{RequestsPerSecond: 1},
		Activation: ActivationConfig{EmptyEvent: "cancel", AfterStart: "delete"},
		SocketPath: "/run/grange/lobby.sock",
	}
}

// Load reads the config file named by GRANGE_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv("GRANGE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("GRANGE_CONFIG environment variable not set")
	}
	return LoadFile(path)
}

// LoadFile reads and validates a config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	config := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return config, nil
}

// Validate checks required fields and enum values.
func (c *Config) Validate() error {
	if c.Homeserver.URL == "" {
		return fmt.Errorf("homeserver.url is required")
	}
	if c.Homeserver.UserID == "" {
		return fmt.Errorf("homeserver.user_id is required")
	}
	if c.Rooms.Signup == "" {
		return fmt.Errorf("rooms.signup is required")
	}
	if c.Rooms.Members == "" {
		return fmt.Errorf("rooms.members is required")
	}

	switch c.Activation.EmptyEvent {
	case "cancel", "activate":
	default:
		return fmt.Errorf("activation.empty_event must be cancel or activate, got %q", c.Activation.EmptyEvent)
	}
	switch c.Activation.AfterStart {
	case "delete", "retain":
	default:
		return fmt.Errorf("activation.after_start must be delete or retain, got %q", c.Activation.AfterStart)
	}
	return nil
}
