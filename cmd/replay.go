// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

var (
	replayInject bool
	replayCells  int
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Print or re-run a bus capture",
	Long: `Read a capture written by raw_log --record or cell --record.

By default every record is printed with its direction and decoded fields.
With --inject, the received lines are sent into a chain of simulated cells
and the lines leaving the chain are printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayInject, "inject", false, "Re-dispatch received lines through a simulated chain")
	replayCmd.Flags().IntVarP(&replayCells, "cells", "n", 1, "Number of cells in the chain (with --inject)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	records, err := readCapture(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("SCBS - Replay\n")
	fmt.Printf("Capture: %s (%d records)\n\n", args[0], len(records))

	if !replayInject {
		printCapture(os.Stdout, records)
		return nil
	}
	if replayCells < 1 {
		return fmt.Errorf("--cells must be at least 1, got %d", replayCells)
	}
	injectCapture(os.Stdout, records, replayCells)
	return nil
}

// readCapture loads every record from the capture file at path
func readCapture(path string) ([]scbs.CaptureRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	var records []scbs.CaptureRecord
	r := scbs.NewCaptureReader(f)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to read capture record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

func printCapture(out io.Writer, records []scbs.CaptureRecord) {
	for _, rec := range records {
		fmt.Fprintf(out, "%s ", rec.Direction)
		fmt.Fprint(out, scbs.FormatPacket(rec.Time, rec.Line))
	}
}

// injectCapture replays RX records into a chain of size cells. TX records
// were produced by the original cell and are skipped.
func injectCapture(out io.Writer, records []scbs.CaptureRecord, size int) {
	tail := &cell.CollectSink{}
	chain := cell.NewChain(size, cell.DefaultConfig(), tail)

	for _, rec := range records {
		if rec.Direction != scbs.DirectionRX {
			continue
		}
		tail.Reset()
		chain.Send(rec.Line)
		chain.Run()
		for _, line := range tail.Lines() {
			fmt.Fprint(out, scbs.FormatPacket(rec.Time, line))
		}
	}
}
