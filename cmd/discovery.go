// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

var (
	discoveryTimeout int
	discoveryStart   uint16
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Enumerate the cells on the chain",
	Long: `Send a cell discover packet and count the cells on the chain.

Each cell takes the ID after the one it receives and passes the discover
packet on, so the packet that returns from the last cell carries the highest
ID assigned. The cell count is that ID minus the starting ID.

Examples:
  # Enumerate cells starting from ID 1
  scbs discovery --port /dev/ttyUSB0

Exit codes:
  0 - Discovery successful (at least one cell found)
  1 - Discovery failed (no cells or timeout)
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Timeout in seconds for discovery")
	discoveryCmd.Flags().Uint16Var(&discoveryStart, "start", 0, "Cell ID to send in the discover packet")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(flagTarget())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("SCBS - Cell Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	src := cell.NewReaderSource(conn)

	packet := scbs.NewDiscover(discoveryStart)
	fmt.Printf("Sending %s...\n", packet.Raw())
	if err := transmit(conn, packet.Raw()); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(2)
	}

	var result *scbs.Discover
	err = collectLines(src, time.Duration(discoveryTimeout)*time.Second, func(line string) bool {
		msg, decodeErr := scbs.Decode(line)
		if decodeErr != nil {
			fmt.Printf("Invalid line: %q (%v)\n", line, decodeErr)
			return false
		}
		switch p := msg.(type) {
		case *scbs.Discover:
			result = p
			return true
		case *scbs.SingleResponse:
			if code, isErr := p.ErrorCode(); isErr {
				fmt.Printf("Cell %d reported error: %s (0x%02X)\n", p.CellID, code.Error(), uint8(code))
			}
		}
		return false
	})
	if err != nil {
		fmt.Printf("READ FAILED: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	if result == nil {
		fmt.Printf("TIMEOUT: Discover packet did not return in %ds\n", discoveryTimeout)
		fmt.Printf("No cells discovered. Check that the chain is closed back to this port.\n")
		os.Exit(1)
	}

	cells := countCells(discoveryStart, result.LastCellID)
	fmt.Printf("Cells found: %d\n", cells)
	if cells == 0 {
		os.Exit(1)
	}
	fmt.Printf("Cell IDs: %d-%d\n", discoveryStart+1, result.LastCellID)
	return nil
}

// countCells returns the number of cells that incremented the discover ID
func countCells(start, last uint16) int {
	return int(last - start)
}
