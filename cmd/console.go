// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

// consoleBatchInterval is how often received lines are handed to the TUI
const consoleBatchInterval = 50 * time.Millisecond

var (
	consolePollInterval int
	consoleRecord       string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive TUI for driving a chain of cells",
	Long: `Drive an SCBS chain from an interactive terminal UI.

The console acts as the bus master. It discovers the chain on start, lists the
cells it found with their latest output readings, and accepts master commands:

` + scbs.CommandUsage + `

Features:
  - Cell discovery on start and on Ctrl+R
  - Periodic multi reads of output voltage and current
  - Statistics and event log for every line received
  - Automatic reconnection on connection loss

Tab switches between the command input and the cell list. Enter on a cell
fills in a single read for it.

Supports both serial and WebSocket connections.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().IntVar(&consolePollInterval, "poll-interval", 5, "Seconds between output readings (0 disables)")
	consoleCmd.Flags().StringVar(&consoleRecord, "record", "", "Write bus traffic to a capture file")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	target   busTarget
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	rec      *recorder
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// send transmits one frame on the current connection
func (cm *connectionManager) send(line string) error {
	conn := cm.getConn()
	if conn == nil {
		return errors.New("connection lost")
	}
	if err := transmit(conn, line); err != nil {
		return err
	}
	cm.rec.record(scbs.DirectionTX, line)
	return nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	if consolePollInterval < 0 {
		return fmt.Errorf("--poll-interval must not be negative, got %d", consolePollInterval)
	}

	// prompt once; reconnects happen inside the TUI
	target := flagTarget()
	if target.URL != "" && target.Username != "" {
		pw, err := GetPassword()
		if err != nil {
			return err
		}
		target.Password = pw
	}
	conn, connInfo, err := OpenConnection(target)
	if err != nil {
		return err
	}

	rec, err := openRecorder(consoleRecord)
	if err != nil {
		conn.Close()
		return err
	}
	defer rec.Close()

	cm := &connectionManager{
		target:   target,
		conn:     conn,
		connInfo: connInfo,
		rec:      rec,
		done:     make(chan struct{}),
	}

	m := initialConsoleModel(cm, connInfo, time.Duration(consolePollInterval)*time.Second)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	sendDiscovery(cm)

	_, err = p.Run()
	close(cm.done)
	if c := cm.getConn(); c != nil {
		c.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		if cm.readFromConnection() {
			cm.p.Send(connectionLostMsg{})
			if !cm.reconnect() {
				return
			}
		}
	}
}

// readFromConnection decodes lines from the connection and hands them to
// the TUI in batches. Returns true if the connection was lost, false if
// shutdown was requested.
func (cm *connectionManager) readFromConnection() bool {
	src := cell.NewReaderSource(cm.getConn())
	ticker := time.NewTicker(consoleBatchInterval)
	defer ticker.Stop()

	var batch consoleBatchMsg
	flush := func() {
		if len(batch.lines) > 0 {
			cm.p.Send(batch)
			batch = consoleBatchMsg{}
		}
	}

	for {
		select {
		case <-cm.done:
			return false

		case line, ok := <-src.Lines():
			if !ok {
				flush()
				if err := src.Err(); err != nil {
					logger.Debug().Err(err).Msg("console read stopped")
				}
				select {
				case <-cm.done:
					return false
				default:
					return true
				}
			}
			cm.rec.record(scbs.DirectionRX, line)
			msg, err := scbs.Decode(line)
			batch.lines = append(batch.lines, busLineMsg{line: line, msg: msg, err: err})

		case <-ticker.C:
			flush()
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection(cm.target)
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			sendDiscovery(cm)
			return true
		}
		logger.Debug().Err(err).Dur("backoff", backoff).Msg("reconnect failed")

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// sendDiscovery enumerates the chain from cell ID 0
func sendDiscovery(cm *connectionManager) {
	if err := cm.send(scbs.NewDiscover(0).Raw()); err != nil {
		logger.Debug().Err(err).Msg("discovery send failed")
	}
}
