// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

var (
	simulateCells int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <COMMAND>...",
	Short: "Run master commands through an in-process chain of cells",
	Long: `Run master commands through a chain of simulated cells without hardware.

Each argument is one command, quoted as a whole. Commands run in order
against the same chain, and every line that leaves the last cell is printed.

Commands:
` + scbs.CommandUsage + `

Examples:
  scbs simulate --cells 3 "DIS 0" "SWR 2 1000 2.5" "MRD 2000"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVarP(&simulateCells, "cells", "n", 3, "Number of cells in the chain")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateCells < 1 {
		return fmt.Errorf("--cells must be at least 1, got %d", simulateCells)
	}
	fmt.Printf("SCBS - Chain Simulation\n")
	fmt.Printf("Cells: %d\n\n", simulateCells)
	return simulateCommands(os.Stdout, simulateCells, args)
}

// simulateCommands sends each command into a fresh chain of size cells and
// writes every line returned by the tail to out.
func simulateCommands(out io.Writer, size int, commands []string) error {
	tail := &cell.CollectSink{}
	chain := cell.NewChain(size, cell.DefaultConfig(), tail,
		cell.WithLogger(logger.With().Str("component", "simulate").Logger()))

	for _, command := range commands {
		msg, err := scbs.ParseCommand(command)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "> %s\n", msg.Raw())
		tail.Reset()
		chain.Send(msg.Raw())
		handled := chain.Run()
		logger.Debug().Str("command", command).Int("handled", handled).Msg("chain settled")

		for _, line := range tail.Lines() {
			fmt.Fprint(out, scbs.FormatPacket(time.Now(), line))
		}
		fmt.Fprintln(out)
	}
	return nil
}
