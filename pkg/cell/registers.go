// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cell

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

// RegisterBackend is the register map a node reads and writes on behalf of
// the bus. Errors that are an scbs.ErrorCode are reported as-is; any other
// error is reported as scbs.ErrCodeReceivedInvalidPacket.
type RegisterBackend interface {
	ReadRegister(addr uint32) (string, error)
	WriteRegister(addr uint32, value string) error
}

// DefaultFirmwareVersion is reported by the firmware version register
const DefaultFirmwareVersion = "scbs_go-0.1.0"

// Config describes the simulated output stage behind the register map.
type Config struct {
	MaxOutputVoltage  float64 // rail limit [V]
	CalibrationGain   float64 // PWM duty per volt
	CalibrationOffset float64 // PWM duty at 0 V
	LoadOhms          float64 // simulated load [ohm]
	FirmwareVersion   string
}

// DefaultConfig returns a 5 V stage driving a 10 ohm load
func DefaultConfig() Config {
	return Config{
		MaxOutputVoltage:  5.0,
		CalibrationGain:   0.2,
		CalibrationOffset: 0.0,
		LoadOhms:          10.0,
		FirmwareVersion:   DefaultFirmwareVersion,
	}
}

// SimulatedRegisters implements RegisterBackend with an in-memory output stage.
type SimulatedRegisters struct {
	mu      sync.Mutex
	cfg     Config
	voltage float64 // [V], clamped to the rail
	duty    float64 // PWM duty fraction
}

// NewSimulatedRegisters creates a register map with the output at 0 V
func NewSimulatedRegisters(cfg Config) *SimulatedRegisters {
	if cfg.FirmwareVersion == "" {
		cfg.FirmwareVersion = DefaultFirmwareVersion
	}
	r := &SimulatedRegisters{cfg: cfg}
	r.setOutputVoltage(0)
	return r
}

// ReadRegister implements RegisterBackend
func (r *SimulatedRegisters) ReadRegister(addr uint32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch addr {
	case scbs.RegSetOutputVoltage:
		return formatReading(r.voltage), nil
	case scbs.RegReadOutputCurrent:
		return formatReading(r.outputCurrent()), nil
	case scbs.RegReadFirmwareVersion:
		return r.cfg.FirmwareVersion, nil
	default:
		return "", scbs.ErrCodeAddrNotRecognized
	}
}

// WriteRegister implements RegisterBackend
func (r *SimulatedRegisters) WriteRegister(addr uint32, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch addr {
	case scbs.RegSetOutputVoltage:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(v) {
			return fmt.Errorf("invalid voltage %q", value)
		}
		r.setOutputVoltage(v)
		return nil
	case scbs.RegReadOutputCurrent, scbs.RegReadFirmwareVersion:
		return scbs.ErrCodeWriteNotSupported
	default:
		return scbs.ErrCodeAddrNotRecognized
	}
}

// OutputVoltage returns the commanded output voltage after clamping
func (r *SimulatedRegisters) OutputVoltage() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.voltage
}

// Duty returns the PWM duty fraction driving the output
func (r *SimulatedRegisters) Duty() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duty
}

// setOutputVoltage clamps v to the rail, then calibrates it into a duty.
func (r *SimulatedRegisters) setOutputVoltage(v float64) {
	r.voltage = clamp(v, 0, r.cfg.MaxOutputVoltage)
	r.duty = clamp(r.cfg.CalibrationGain*r.voltage+r.cfg.CalibrationOffset, 0, 1)
}

// outputCurrent returns the load current in mA
func (r *SimulatedRegisters) outputCurrent() float64 {
	if r.cfg.LoadOhms <= 0 {
		return 0
	}
	return r.voltage / r.cfg.LoadOhms * 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
