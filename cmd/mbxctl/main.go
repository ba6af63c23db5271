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

// mbxctl is the mailbox transport's diagnostic tool: it can run an
// in-process demo session, inspect a shared segment and clean stale
// segment files.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hostlink/mailbox/internal/config"
	"github.com/hostlink/mailbox/internal/device"
	"github.com/hostlink/mailbox/internal/transport/mbox"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "mbxctl",
	Short: "Co-processor mailbox transport control tool",
	Long: `mbxctl exercises and inspects the shared-memory mailbox transport.

The demo command runs a complete host/peer exchange inside one process over
a loopback doorbell; segment commands operate on real shared segment files.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(removeCmd)
}

// loadSetup loads the configuration and builds the root logger.
func loadSetup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	levelName := cfg.Logging.Level
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("parse log level %q: %w", levelName, err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	return cfg, logger, nil
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a host/peer exchange over a loopback doorbell",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}

	region := make([]byte, cfg.Mailbox.WindowSize)
	hostBell, peerBell := mbox.NewLoopbackPair()

	sess, err := mbox.Attach(region, hostBell, cfg.Mailbox.SessionConfig(), logger)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer sess.Detach()

	peer, err := mbox.NewPeer(region, peerBell, cfg.Mailbox.SlotSize, logger)
	if err != nil {
		return fmt.Errorf("attach peer: %w", err)
	}
	defer peer.Close()

	node := device.NewNode(sess, logger)
	handle, err := node.Open(false)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer handle.Close()

	// Host -> peer.
	payload := []byte("hello from host")
	if _, err := handle.Write(payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	select {
	case got := <-peer.Outbound():
		fmt.Printf("peer observed: %q\n", got[:len(payload)])
	case <-time.After(cfg.Mailbox.SendTimeout()):
		return fmt.Errorf("peer never observed the write")
	}

	// Peer -> host.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mailbox.SendTimeout())
	defer cancel()
	if err := peer.Deposit(ctx, []byte("hello from peer")); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}

	buf := make([]byte, cfg.Mailbox.SlotSize)
	n, err := handle.Read(buf)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	fmt.Printf("host read %d bytes: %q\n", n, buf[:min(n, 15)])

	snap := sess.Stats()
	fmt.Printf("stats: received=%d dropped=%d reads=%d writes=%d\n",
		snap.SlotsReceived, snap.OverflowDrops, snap.Reads, snap.Writes)
	return nil
}

var infoCmd = &cobra.Command{
	Use:   "info <segment-name>",
	Short: "Inspect an existing shared segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	seg, err := mbox.OpenSegment(args[0])
	if err != nil {
		return err
	}
	defer seg.Close()

	window := seg.Window()
	fmt.Printf("path:        %s\n", seg.Path)
	fmt.Printf("version:     %d\n", seg.Version())
	fmt.Printf("total size:  %d bytes\n", seg.TotalSize())
	fmt.Printf("window:      %d bytes (write %d / read %d)\n",
		len(window), len(window)/2, len(window)-len(window)/2)
	fmt.Printf("slot size:   %d bytes\n", seg.SlotSize())
	return nil
}

var removeCmd = &cobra.Command{
	Use:   "remove <segment-name>",
	Short: "Remove a stale shared segment file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mbox.RemoveSegment(args[0]); err != nil {
			return fmt.Errorf("remove segment %s: %w", args[0], err)
		}
		fmt.Printf("removed segment %s\n", args[0])
		return nil
	},
}
