// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultBeaconPort     = 9991
	DefaultBeaconAddress  = "255.255.255.255"
	DefaultInterval       = 1000 * time.Millisecond
	DefaultEvasiveTimeout = 5000 * time.Millisecond
	DefaultExpiredTimeout = 30000 * time.Millisecond
	DefaultSendHWM        = 1000

	// Dynamic mailbox ports are picked in [MailboxPortMin, MailboxPortMax].
	MailboxPortMin = 0xc000
	MailboxPortMax = 0xffff
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("zyre: invalid configuration")

// Config holds the knobs of a Node.
type Config struct {
	Name    string            `yaml:"name"`    // Advertised in HELLO
	Headers map[string]string `yaml:"headers"` // Advertised in HELLO

	BeaconPort    int    `yaml:"beacon_port"`    // UDP discovery port
	BeaconAddress string `yaml:"beacon_address"` // Broadcast destination

	Interval       time.Duration `yaml:"interval"`        // Beacon and liveness tick
	EvasiveTimeout time.Duration `yaml:"evasive_timeout"` // Silence before PING
	ExpiredTimeout time.Duration `yaml:"expired_timeout"` // Silence before EXIT

	MailboxPort int    `yaml:"mailbox_port"` // 0 picks a dynamic port
	Host        string `yaml:"host"`         // Address advertised to peers
	Interface   string `yaml:"interface"`    // Network interface used to guess Host
	SendHWM     int    `yaml:"send_hwm"`     // Per-peer outbound queue bound

	LogLevel string `yaml:"log_level"`

	Logger     *zap.Logger           `yaml:"-"`
	Registerer prometheus.Registerer `yaml:"-"`
}

// DefaultConfig returns a configuration with every default set.
func DefaultConfig() *Config {
	return &Config{
		Headers:        make(map[string]string),
		BeaconPort:     DefaultBeaconPort,
		BeaconAddress:  DefaultBeaconAddress,
		Interval:       DefaultInterval,
		EvasiveTimeout: DefaultEvasiveTimeout,
		ExpiredTimeout: DefaultExpiredTimeout,
		SendHWM:        DefaultSendHWM,
		LogLevel:       "INFO",
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zyre: could not read config %q: %w", path, err)
	}
	return ParseConfig(raw)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(raw []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("zyre: could not decode config: %w", err)
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetSilentTimeout is an alias for setting EvasiveTimeout.
func (c *Config) SetSilentTimeout(d time.Duration) {
	c.EvasiveTimeout = d
}

// Validate checks ranges and timeout ordering.
func (c *Config) Validate() error {
	switch {
	case c.BeaconPort <= 0 || c.BeaconPort > 0xffff:
		return fmt.Errorf("%w: beacon port %d out of range", ErrInvalidConfig, c.BeaconPort)
	case c.MailboxPort < 0 || c.MailboxPort > 0xffff:
		return fmt.Errorf("%w: mailbox port %d out of range", ErrInvalidConfig, c.MailboxPort)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	case c.EvasiveTimeout <= 0:
		return fmt.Errorf("%w: evasive timeout must be positive", ErrInvalidConfig)
	case c.ExpiredTimeout <= c.EvasiveTimeout:
		return fmt.Errorf("%w: expired timeout %v must exceed evasive timeout %v",
			ErrInvalidConfig, c.ExpiredTimeout, c.EvasiveTimeout)
	case c.SendHWM < 0:
		return fmt.Errorf("%w: negative send high-water mark", ErrInvalidConfig)
	case len(c.Name) > 255:
		return fmt.Errorf("%w: name longer than 255 bytes", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) clone() *Config {
	cp := *c
	cp.Headers = make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		cp.Headers[k] = v
	}
	return &cp
}
