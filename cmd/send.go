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
	sendTimeout  int
	sendRepeat   int
	sendInterval time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <COMMAND> [ARGS...]",
	Short: "Send one packet to the chain and print the replies",
	Long: `Build one SCBS packet from a command, send it, and print every line that
comes back until the timeout expires.

Commands:
` + scbs.CommandUsage + `

Examples:
  # Enumerate cells
  scbs send --port /dev/ttyUSB0 DIS 0

  # Set cell 2 to 3.3 V
  scbs send --port /dev/ttyUSB0 SWR 2 1000 3.3

  # Read every cell's output current ten times a second
  scbs send --port /dev/ttyUSB0 --repeat 0 --interval 100ms MRD 2000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 2, "Seconds to wait for replies after the last packet")
	sendCmd.Flags().IntVar(&sendRepeat, "repeat", 1, "Number of times to send the packet (0 = until interrupted)")
	sendCmd.Flags().DurationVar(&sendInterval, "interval", 500*time.Millisecond, "Delay between repeated packets")
}

func runSend(cmd *cobra.Command, args []string) error {
	msg, err := scbs.BuildCommand(args[0], args[1:])
	if err != nil {
		return err
	}
	if sendRepeat < 0 {
		return fmt.Errorf("--repeat must not be negative, got %d", sendRepeat)
	}

	conn, connInfo, err := OpenConnection(flagTarget())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("SCBS - Send\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Packet: %s\n\n", msg.Raw())

	src := cell.NewReaderSource(conn)
	printReply := func(line string) bool {
		fmt.Print(scbs.FormatPacket(time.Now(), line))
		return false
	}

	for sent := 0; sendRepeat == 0 || sent < sendRepeat; sent++ {
		if err := transmit(conn, msg.Raw()); err != nil {
			return err
		}
		logger.Debug().Int("count", sent+1).Str("packet", msg.Raw()).Msg("sent")

		if sendRepeat == 0 || sent+1 < sendRepeat {
			if err := collectLines(src, sendInterval, printReply); err != nil {
				return fmt.Errorf("read error: %w", err)
			}
		}
	}

	if err := collectLines(src, time.Duration(sendTimeout)*time.Second, printReply); err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	return nil
}
