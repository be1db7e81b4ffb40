// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cell.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCellConfigExample(t *testing.T) {
	cfg, err := loadCellConfig(filepath.Join("testdata", "cell.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "/dev/ttyUSB1" {
		t.Fatalf("unexpected port: %q", cfg.Port)
	}
	if cfg.Baud != 115200 {
		t.Fatalf("unexpected baud: %d", cfg.Baud)
	}
	if cfg.Registers.MaxOutputVoltage != 3.3 {
		t.Fatalf("unexpected max voltage: %g", cfg.Registers.MaxOutputVoltage)
	}
	if cfg.Registers.CalibrationGain != 0.25 {
		t.Fatalf("unexpected gain: %g", cfg.Registers.CalibrationGain)
	}
	if cfg.Registers.CalibrationOffset != 0 {
		t.Fatalf("unexpected offset: %g", cfg.Registers.CalibrationOffset)
	}
	if cfg.Registers.LoadOhms != 4.7 {
		t.Fatalf("unexpected load: %g", cfg.Registers.LoadOhms)
	}
	if cfg.Registers.FirmwareVersion != "cell-bench-1" {
		t.Fatalf("unexpected firmware version: %q", cfg.Registers.FirmwareVersion)
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Fatalf("unexpected metrics addr: %q", cfg.MetricsAddr)
	}
	if cfg.Record != "" {
		t.Fatalf("unexpected record path: %q", cfg.Record)
	}
}

func TestLoadCellConfigDefaults(t *testing.T) {
	cfg, err := loadCellConfig(writeConfig(t, "record = \"bus.cbor\"\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Baud != defaultBaudRate {
		t.Fatalf("expected default baud, got %d", cfg.Baud)
	}
	if cfg.Registers != cell.DefaultConfig() {
		t.Fatalf("expected default registers, got %+v", cfg.Registers)
	}
	if cfg.Record != "bus.cbor" {
		t.Fatalf("unexpected record path: %q", cfg.Record)
	}
}

func TestLoadCellConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero baud", "baud = 0\n", "baud"},
		{"negative voltage", "max_output_voltage = -1.0\n", "max_output_voltage"},
		{"zero load", "load_ohms = 0.0\n", "load_ohms"},
		{"long firmware version", "firmware_version = \"this-version-is-far-too-long\"\n", "firmware_version"},
		{"unknown key", "voltage = 3.0\n", "unknown key"},
		{"bad syntax", "baud = \n", "load cell config"},
		{"wrong type", "baud = \"fast\"\n", "load cell config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadCellConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadCellConfigMissingFile(t *testing.T) {
	if _, err := loadCellConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestCellConfigTarget(t *testing.T) {
	cfg, err := loadCellConfig(filepath.Join("testdata", "cell.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	serialLink := cfg.target(busTarget{Port: "/dev/ttyS9", Baud: defaultBaudRate})
	if serialLink.String() != "Serial: /dev/ttyUSB1 @ 115200 baud" {
		t.Errorf("serial target = %q", serialLink.String())
	}

	bridged := cfg.target(busTarget{URL: "ws://bridge/ws", Username: "admin"})
	if bridged.URL != "ws://bridge/ws" || bridged.Username != "admin" || bridged.Port != "/dev/ttyUSB1" {
		t.Errorf("bridged target = %+v", bridged)
	}
}
