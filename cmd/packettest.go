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
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid SCBS packet",
	Long: `Wait for a valid SCBS packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
SCBS packet. Lines that fail to decode are counted and skipped.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(flagTarget())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("SCBS - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid SCBS packet...\n\n")

	src := cell.NewReaderSource(conn)
	invalidLines := 0
	var found scbs.Message

	err = collectLines(src, time.Duration(packetTestTimeout)*time.Second, func(line string) bool {
		msg, decodeErr := scbs.Decode(line)
		if decodeErr != nil {
			invalidLines++
			logger.Debug().Err(decodeErr).Str("line", line).Msg("skipped line")
			return false
		}
		found = msg
		return true
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	if found == nil {
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	if invalidLines > 0 {
		fmt.Printf("(skipped %d invalid lines)\n", invalidLines)
	}
	fmt.Printf("SUCCESS: Received valid packet\n")
	fmt.Printf("  Type: %s ($%s)\n", scbs.FormatMessageType(found.Type()), found.Type().Header())
	fmt.Printf("  Raw: %s\n", found.Raw())
	fmt.Print(scbs.FormatFields(found))
	return nil
}
