// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor bus traffic and track packet errors",
	Long: `Passively watch a bus link and track packet statistics.

Every line is decoded and classified:
  - Checksum errors (corrupted in transit)
  - Framing errors (missing '$' or '*')
  - Header errors (unknown packet type)
  - Field errors (wrong field count, bad cell ID or register address)
  - Error responses reported by cells (ERR:<code>)

By default, only errors are displayed. Use --show-all to display valid packets too.

Errors before the first valid packet are counted separately, since the link
may have been joined in the middle of a line.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if statsInterval < 1 {
		return fmt.Errorf("--stats-interval must be at least 1, got %d", statsInterval)
	}

	conn, connInfo, err := OpenConnection(flagTarget())
	if err != nil {
		return err
	}
	defer conn.Close()

	src := cell.NewReaderSource(conn)
	if useTUI {
		return runMonitorTUI(src, connInfo)
	}
	return runMonitorText(src, connInfo)
}

// busLineMsg carries one decoded line to the monitor TUI
type busLineMsg struct {
	line string
	msg  scbs.Message
	err  error
}

// syncMsg reports the first valid packet on the link
type syncMsg struct {
	skippedLines int
}

// linkClosedMsg reports that the connection stopped delivering lines
type linkClosedMsg struct {
	err error
}

// lineSync drops decode errors until the first valid packet is seen
type lineSync struct {
	synchronized bool
	skipped      int
}

// accept reports whether a decode result should be counted. justSynced is
// true for the first valid packet.
func (s *lineSync) accept(err error) (counted, justSynced bool) {
	if s.synchronized {
		return true, false
	}
	if err != nil {
		s.skipped++
		return false, false
	}
	s.synchronized = true
	return true, true
}

func runMonitorTUI(src *cell.ReaderSource, connInfo string) error {
	m := initialMonitorModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go func() {
		var syncer lineSync
		for line := range src.Lines() {
			msg, err := scbs.Decode(line)
			counted, justSynced := syncer.accept(err)
			if justSynced {
				p.Send(syncMsg{skippedLines: syncer.skipped})
			}
			if counted {
				p.Send(busLineMsg{line: line, msg: msg, err: err})
			}
		}
		p.Send(linkClosedMsg{err: src.Err()})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runMonitorText(src *cell.ReaderSource, connInfo string) error {
	fmt.Printf("SCBS - Bus Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := scbs.NewStatistics()
	var syncer lineSync

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case line, ok := <-src.Lines():
			if !ok {
				fmt.Println()
				fmt.Print(stats.String())
				if err := src.Err(); err != nil && !errors.Is(err, ErrConnectionClosed) {
					return fmt.Errorf("read error: %w", err)
				}
				return nil
			}

			msg, err := scbs.Decode(line)
			counted, justSynced := syncer.accept(err)
			if justSynced {
				if syncer.skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid lines\n\n", syncer.skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			if !counted {
				continue
			}
			stats.Update(msg, err)
			printMonitorLine(time.Now(), line, msg, err)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// printMonitorLine prints errors always and valid packets with --show-all
func printMonitorLine(ts time.Time, line string, msg scbs.Message, err error) {
	timestamp := ts.Format("15:04:05.000")
	switch {
	case err != nil:
		fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
		fmt.Printf("  Line: %q\n", line)
		fmt.Printf("  >>> PACKET REJECTED <<<\n\n")
	case isErrorResponse(msg):
		resp := msg.(*scbs.SingleResponse)
		code, _ := resp.ErrorCode()
		fmt.Printf("[%s] \033[1;33mCELL ERROR:\033[0m cell %d reported %s (0x%02X)\n\n",
			timestamp, resp.CellID, code.Error(), uint8(code))
	case showAll:
		fmt.Print(scbs.FormatPacket(ts, line))
	}
}

func isErrorResponse(msg scbs.Message) bool {
	resp, ok := msg.(*scbs.SingleResponse)
	if !ok {
		return false
	}
	_, isErr := resp.ErrorCode()
	return isErr
}
