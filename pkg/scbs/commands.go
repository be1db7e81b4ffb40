// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Command grammar used by master tools to build packets from text:
//
//	DIS <PREV_CELL_ID>
//	MRD <REG_ADDR>
//	MWR <REG_ADDR> <VALUE>
//	SRD <CELL_ID> <REG_ADDR>
//	SWR <CELL_ID> <REG_ADDR> <VALUE>
//	SRS <CELL_ID> <VALUE>
//
// Register addresses are hex with an optional 0x prefix; cell IDs are decimal.
// Values containing spaces may be quoted.

// CommandUsage lists the supported commands, one per line
const CommandUsage = `DIS <PREV_CELL_ID>               Cell Discover
MRD <REG_ADDR>                   Multi Read
MWR <REG_ADDR> <VALUE>           Multi Write
SRD <CELL_ID> <REG_ADDR>         Single Read
SWR <CELL_ID> <REG_ADDR> <VALUE> Single Write
SRS <CELL_ID> <VALUE>            Single Response`

// ParseCommand builds a packet from a command line such as "SRD 2 1000"
func ParseCommand(line string) (Message, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return BuildCommand(words[0], words[1:])
}

// BuildCommand builds a packet from a command mnemonic and its arguments
func BuildCommand(name string, args []string) (Message, error) {
	name = strings.ToUpper(name)
	want := map[string]int{"DIS": 1, "MRD": 1, "MWR": 2, "SRD": 2, "SWR": 3, "SRS": 2}
	n, ok := want[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized command: %s", name)
	}
	if len(args) != n {
		return nil, fmt.Errorf("invalid number of arguments for BS%s: expected %d but got %d", name, n, len(args))
	}

	switch name {
	case "DIS":
		id, err := parseCellIDArg(args[0])
		if err != nil {
			return nil, err
		}
		return NewDiscover(id), nil

	case "MRD":
		addr, err := parseAddressArg(args[0])
		if err != nil {
			return nil, err
		}
		return NewMultiRead(addr), nil

	case "MWR":
		addr, err := parseAddressArg(args[0])
		if err != nil {
			return nil, err
		}
		return NewMultiWrite(addr, args[1]), nil

	case "SRD":
		id, err := parseCellIDArg(args[0])
		if err != nil {
			return nil, err
		}
		addr, err := parseAddressArg(args[1])
		if err != nil {
			return nil, err
		}
		return NewSingleRead(id, addr), nil

	case "SWR":
		id, err := parseCellIDArg(args[0])
		if err != nil {
			return nil, err
		}
		addr, err := parseAddressArg(args[1])
		if err != nil {
			return nil, err
		}
		return NewSingleWrite(id, addr, args[2]), nil

	default: // SRS
		id, err := parseCellIDArg(args[0])
		if err != nil {
			return nil, err
		}
		return NewSingleResponse(id, args[1]), nil
	}
}

func parseCellIDArg(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, numberBase, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid cell id %q: must be 0-65535", s)
	}
	return uint16(v), nil
}

func parseAddressArg(s string) (uint32, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(hex, addressBase, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid register address %q: expected hex", s)
	}
	return uint32(v), nil
}
