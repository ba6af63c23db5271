/*
 * Copyright 2025 The hostlink Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the mailbox configuration. The protocol constants
// carried here must match the peer exactly: they are configuration, never
// negotiated with the other side.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hostlink/mailbox/internal/transport/mbox"
)

// Config is the complete mailbox configuration.
type Config struct {
	Mailbox MailboxConfig `mapstructure:"mailbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MailboxConfig carries the session's protocol constants and the segment
// identity.
type MailboxConfig struct {
	// SegmentName names the shared segment file.
	SegmentName string `mapstructure:"segment_name"`
	// WindowSize is the total shared window in bytes; its upper half must
	// equal SlotSize.
	WindowSize int `mapstructure:"window_size"`
	// SlotSize is the fixed inbound message size in bytes.
	SlotSize int `mapstructure:"slot_size"`
	// QueueCapacity is the maximum number of buffered inbound slots.
	QueueCapacity int `mapstructure:"queue_capacity"`
	// SendTimeoutMs bounds the blocking doorbell send on the write path.
	SendTimeoutMs int `mapstructure:"send_timeout_ms"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mailbox: MailboxConfig{
			SegmentName:   "mailbox0",
			WindowSize:    2 * mbox.DefaultSlotSize,
			SlotSize:      mbox.DefaultSlotSize,
			QueueCapacity: mbox.DefaultQueueCapacity,
			SendTimeoutMs: int(mbox.DefaultSendTimeout / time.Millisecond),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration from the optional file at path, falling back
// to MBX_-prefixed environment variables and the defaults. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MBX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("mailbox.segment_name", d.Mailbox.SegmentName)
	v.SetDefault("mailbox.window_size", d.Mailbox.WindowSize)
	v.SetDefault("mailbox.slot_size", d.Mailbox.SlotSize)
	v.SetDefault("mailbox.queue_capacity", d.Mailbox.QueueCapacity)
	v.SetDefault("mailbox.send_timeout_ms", d.Mailbox.SendTimeoutMs)
	v.SetDefault("logging.level", d.Logging.Level)
}

// Validate checks the protocol constants. The window geometry check here
// mirrors the attach-time invariant so a misconfiguration is caught before
// any segment is created.
func (c *Config) Validate() error {
	m := c.Mailbox
	if m.SegmentName == "" {
		return fmt.Errorf("mailbox.segment_name must not be empty")
	}
	if m.SlotSize <= 0 {
		return fmt.Errorf("mailbox.slot_size must be positive, got %d", m.SlotSize)
	}
	if m.QueueCapacity <= 0 {
		return fmt.Errorf("mailbox.queue_capacity must be positive, got %d", m.QueueCapacity)
	}
	if m.SendTimeoutMs <= 0 {
		return fmt.Errorf("mailbox.send_timeout_ms must be positive, got %d", m.SendTimeoutMs)
	}
	if readHalf := m.WindowSize - m.WindowSize/2; readHalf != m.SlotSize {
		return fmt.Errorf("mailbox.window_size %d yields a %d-byte read half, slot_size is %d",
			m.WindowSize, readHalf, m.SlotSize)
	}
	return nil
}

// SendTimeout returns the doorbell send timeout as a duration.
func (m *MailboxConfig) SendTimeout() time.Duration {
	return time.Duration(m.SendTimeoutMs) * time.Millisecond
}

// SessionConfig converts the mailbox settings into the transport's session
// configuration.
func (m *MailboxConfig) SessionConfig() mbox.Config {
	return mbox.Config{
		SlotSize:      m.SlotSize,
		QueueCapacity: m.QueueCapacity,
		SendTimeout:   m.SendTimeout(),
	}
}
