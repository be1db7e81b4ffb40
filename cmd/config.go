// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

// cellFileConfig mirrors the keys accepted in a cell TOML file
type cellFileConfig struct {
	Port              string  `toml:"port"`
	Baud              int     `toml:"baud"`
	MaxOutputVoltage  float64 `toml:"max_output_voltage"`
	CalibrationGain   float64 `toml:"calibration_gain"`
	CalibrationOffset float64 `toml:"calibration_offset"`
	LoadOhms          float64 `toml:"load_ohms"`
	FirmwareVersion   string  `toml:"firmware_version"`
	MetricsAddr       string  `toml:"metrics_addr"`
	Record            string  `toml:"record"`
}

// cellConfig is the resolved configuration of the cell command
type cellConfig struct {
	Port        string
	Baud        int
	Registers   cell.Config
	MetricsAddr string
	Record      string
}

// target applies the configured port and baud to link. WebSocket settings
// only come from flags.
func (c cellConfig) target(link busTarget) busTarget {
	link.Port = c.Port
	link.Baud = c.Baud
	return link
}

func defaultCellConfig() cellConfig {
	return cellConfig{
		Baud:      defaultBaudRate,
		Registers: cell.DefaultConfig(),
	}
}

// loadCellConfig reads path over the defaults. Keys missing from the file
// keep their default value.
func loadCellConfig(path string) (cellConfig, error) {
	cfg := defaultCellConfig()

	var raw cellFileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cellConfig{}, fmt.Errorf("load cell config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cellConfig{}, fmt.Errorf("load cell config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("max_output_voltage") {
		cfg.Registers.MaxOutputVoltage = raw.MaxOutputVoltage
	}
	if meta.IsDefined("calibration_gain") {
		cfg.Registers.CalibrationGain = raw.CalibrationGain
	}
	if meta.IsDefined("calibration_offset") {
		cfg.Registers.CalibrationOffset = raw.CalibrationOffset
	}
	if meta.IsDefined("load_ohms") {
		cfg.Registers.LoadOhms = raw.LoadOhms
	}
	if meta.IsDefined("firmware_version") {
		cfg.Registers.FirmwareVersion = strings.TrimSpace(raw.FirmwareVersion)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("record") {
		cfg.Record = strings.TrimSpace(raw.Record)
	}

	if err := cfg.validate(); err != nil {
		return cellConfig{}, fmt.Errorf("load cell config: %w", err)
	}
	return cfg, nil
}

func (c cellConfig) validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.Registers.MaxOutputVoltage <= 0 {
		return fmt.Errorf("max_output_voltage must be positive, got %g", c.Registers.MaxOutputVoltage)
	}
	if c.Registers.LoadOhms <= 0 {
		return fmt.Errorf("load_ohms must be positive, got %g", c.Registers.LoadOhms)
	}
	if len(c.Registers.FirmwareVersion) > scbs.MaxFieldLen-1 {
		return fmt.Errorf("firmware_version %q exceeds %d characters", c.Registers.FirmwareVersion, scbs.MaxFieldLen-1)
	}
	return nil
}
