// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
)

// cellPollInterval is how often the cell checks for a new line when idle
const cellPollInterval = time.Millisecond

var (
	cellConfigPath  string
	cellMetricsAddr string
	cellRecord      string
)

var cellCmd = &cobra.Command{
	Use:   "cell",
	Short: "Run a simulated cell on the connection",
	Long: `Run one SCBS cell on a serial port or WebSocket bridge.

The cell answers discover, read and write packets against a simulated output
stage and passes everything else downstream on the same link. Settings can be
loaded from a TOML file; command line flags override the file.

Example config:
  port = "/dev/ttyUSB0"
  baud = 9600
  max_output_voltage = 5.0
  calibration_gain = 0.2
  calibration_offset = 0.0
  load_ohms = 10.0
  firmware_version = "scbs_go-0.1.0"
  metrics_addr = "127.0.0.1:9464"
  record = "cell.cbor"`,
	RunE: runCell,
}

func init() {
	rootCmd.AddCommand(cellCmd)
	cellCmd.Flags().StringVarP(&cellConfigPath, "config", "c", "", "TOML config file")
	cellCmd.Flags().StringVar(&cellMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cellCmd.Flags().StringVar(&cellRecord, "record", "", "Write bus traffic to a capture file")
}

// resolveCellConfig merges the config file with any flags set on cmd
func resolveCellConfig(cmd *cobra.Command) (cellConfig, error) {
	cfg := defaultCellConfig()
	if cellConfigPath != "" {
		var err error
		cfg, err = loadCellConfig(cellConfigPath)
		if err != nil {
			return cellConfig{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") || cfg.Port == "" {
		cfg.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = cellMetricsAddr
	}
	if flags.Changed("record") {
		cfg.Record = cellRecord
	}
	return cfg, cfg.validate()
}

func runCell(cmd *cobra.Command, args []string) error {
	cfg, err := resolveCellConfig(cmd)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg.target(flagTarget()))
	if err != nil {
		return err
	}
	defer conn.Close()

	rec, err := openRecorder(cfg.Record)
	if err != nil {
		return err
	}
	defer rec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []cell.Option{cell.WithLogger(logger.With().Str("component", "cell").Logger())}
	if cfg.MetricsAddr != "" {
		opts = append(opts, cell.WithObserver(newPromObserver()))
		go func() {
			if err := serveMetrics(ctx, cfg.MetricsAddr); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	regs := cell.NewSimulatedRegisters(cfg.Registers)
	sink := rec.sink(cell.NewWriterSink(conn, logger))
	node := cell.NewNode(regs, sink, opts...)

	fmt.Printf("SCBS - Cell\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Firmware: %s\n", cfg.Registers.FirmwareVersion)
	fmt.Printf("Waiting for discovery. Press Ctrl+C to exit\n\n")

	src := cell.NewReaderSource(conn)
	if err := pollCell(ctx, node, src, rec); err != nil {
		return err
	}

	logger.Info().
		Uint16("cell_id", node.CellID()).
		Float64("output_voltage", regs.OutputVoltage()).
		Msg("cell stopped")
	return nil
}

// pollCell drives node from src until ctx is cancelled or src stops.
// Lines already queued when src stops are still handled.
func pollCell(ctx context.Context, node *cell.Node, src *cell.ReaderSource, rec *recorder) error {
	lines := recordingSource{src: src, rec: rec}
	ticker := time.NewTicker(cellPollInterval)
	defer ticker.Stop()

	for {
		for node.Poll(lines) {
		}

		select {
		case <-ctx.Done():
			return nil
		case <-src.Done():
			for node.Poll(lines) {
			}
			if err := src.Err(); err != nil && !errors.Is(err, ErrConnectionClosed) {
				return fmt.Errorf("read error: %w", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}
