// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cell

import "github.com/CoolNamesAllTaken/scbs/pkg/scbs"

// Observer is notified of every decision a node makes. Implementations must
// not block; they are called from the node's dispatch cycle.
type Observer interface {
	// Received is called once per line. t is scbs.PacketUnknown when the
	// framing could not be decoded.
	Received(t scbs.PacketType, valid bool)
	// Responded is called when the node answers with an SRS. code is
	// scbs.ErrCodeNone for successful responses.
	Responded(code scbs.ErrorCode)
	// Forwarded is called when a packet (possibly updated) is passed downstream.
	Forwarded(t scbs.PacketType)
	// Assigned is called when discovery gives the node its cell ID.
	Assigned(cellID uint16)
}

// Observers fans notifications out to several observers.
type Observers []Observer

func (o Observers) Received(t scbs.PacketType, valid bool) {
	for _, obs := range o {
		obs.Received(t, valid)
	}
}

func (o Observers) Responded(code scbs.ErrorCode) {
	for _, obs := range o {
		obs.Responded(code)
	}
}

func (o Observers) Forwarded(t scbs.PacketType) {
	for _, obs := range o {
		obs.Forwarded(t)
	}
}

func (o Observers) Assigned(cellID uint16) {
	for _, obs := range o {
		obs.Assigned(cellID)
	}
}
