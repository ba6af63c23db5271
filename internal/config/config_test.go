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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mailbox0", cfg.Mailbox.SegmentName)
	assert.Equal(t, 2048, cfg.Mailbox.SlotSize)
	assert.Equal(t, 4096, cfg.Mailbox.WindowSize)
	assert.Equal(t, 32, cfg.Mailbox.QueueCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.Mailbox.SendTimeout())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mailbox.yaml")
	content := `
mailbox:
  segment_name: coproc1
  window_size: 1024
  slot_size: 512
  queue_capacity: 8
  send_timeout_ms: 250
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "coproc1", cfg.Mailbox.SegmentName)
	assert.Equal(t, 512, cfg.Mailbox.SlotSize)
	assert.Equal(t, 8, cfg.Mailbox.QueueCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.Mailbox.SendTimeout())
	assert.Equal(t, "debug", cfg.Logging.Level)

	sc := cfg.Mailbox.SessionConfig()
	assert.Equal(t, 512, sc.SlotSize)
	assert.Equal(t, 8, sc.QueueCapacity)
	assert.Equal(t, 250*time.Millisecond, sc.SendTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty segment name", mutate: func(c *Config) { c.Mailbox.SegmentName = "" }, wantErr: true},
		{name: "zero slot size", mutate: func(c *Config) { c.Mailbox.SlotSize = 0 }, wantErr: true},
		{name: "zero queue capacity", mutate: func(c *Config) { c.Mailbox.QueueCapacity = 0 }, wantErr: true},
		{name: "zero send timeout", mutate: func(c *Config) { c.Mailbox.SendTimeoutMs = 0 }, wantErr: true},
		{
			name:    "window read half does not match slot",
			mutate:  func(c *Config) { c.Mailbox.WindowSize = 4094 },
			wantErr: true,
		},
		{
			// 4095 floor-splits into write 2047 / read 2048, so the
			// default slot still fits.
			name:   "odd window whose read half still matches",
			mutate: func(c *Config) { c.Mailbox.WindowSize = 4095 },
		},
		{
			name: "odd window with matching slot",
			mutate: func(c *Config) {
				c.Mailbox.WindowSize = 1025
				c.Mailbox.SlotSize = 513
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
