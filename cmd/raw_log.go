// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

var (
	rawLogRecord string
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw packet log in human-readable format",
	Long: `Continuously decode and display SCBS packets as they arrive.

Each line is shown with a timestamp, its packet type and decoded fields, or
the reason it failed to decode. With --record, every line is also written to
a CBOR capture file that can be played back with the replay command.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogRecord, "record", "", "Write received lines to a capture file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(flagTarget())
	if err != nil {
		return err
	}
	defer conn.Close()

	rec, err := openRecorder(rawLogRecord)
	if err != nil {
		return err
	}
	defer rec.Close()

	fmt.Printf("SCBS - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if rawLogRecord != "" {
		fmt.Printf("Recording: %s\n", rawLogRecord)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	src := cell.NewReaderSource(conn)
	for line := range src.Lines() {
		rec.record(scbs.DirectionRX, line)
		fmt.Print(scbs.FormatPacket(time.Now(), line))
	}

	if err := src.Err(); err != nil && !errors.Is(err, ErrConnectionClosed) {
		return fmt.Errorf("read error: %w", err)
	}
	logger.Info().Msg("connection closed")
	return nil
}
