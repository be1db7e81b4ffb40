// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// SCBS - daisy-chain cell bus tools
//
// Runs simulated cells, drives a chain as the bus master, and decodes,
// monitors and records SCBS bus traffic.

package main

import (
	"os"

	"github.com/CoolNamesAllTaken/scbs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
