// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cell

// Chain is a series of simulated nodes. Node i transmits into node i+1's
// input queue; the last node transmits to the tail sink.
type Chain struct {
	nodes  []*Node
	regs   []*SimulatedRegisters
	inputs []*Queue
}

// NewChain creates size nodes, each with its own SimulatedRegisters built
// from cfg. opts are applied to every node; each node's logger is tagged with
// its position in the chain.
func NewChain(size int, cfg Config, tail TransmitSink, opts ...Option) *Chain {
	c := &Chain{
		nodes:  make([]*Node, size),
		regs:   make([]*SimulatedRegisters, size),
		inputs: make([]*Queue, size),
	}
	for i := range c.inputs {
		c.inputs[i] = &Queue{}
	}
	for i := range c.nodes {
		var sink TransmitSink = tail
		if i+1 < size {
			sink = c.inputs[i+1]
		}
		c.regs[i] = NewSimulatedRegisters(cfg)
		node := NewNode(c.regs[i], sink, opts...)
		node.log = node.log.With().Int("position", i).Logger()
		c.nodes[i] = node
	}
	return c
}

// Send queues a line at the head of the chain
func (c *Chain) Send(line string) {
	if len(c.inputs) > 0 {
		c.inputs[0].Send(line)
	}
}

// Run polls every node until no node has input left and returns the
// number of lines handled.
func (c *Chain) Run() int {
	handled := 0
	for {
		progressed := false
		for i, node := range c.nodes {
			for node.Poll(c.inputs[i]) {
				handled++
				progressed = true
			}
		}
		if !progressed {
			return handled
		}
	}
}

// Len returns the number of nodes
func (c *Chain) Len() int {
	return len(c.nodes)
}

// Node returns the i-th node from the head
func (c *Chain) Node(i int) *Node {
	return c.nodes[i]
}

// Registers returns the register map of the i-th node
func (c *Chain) Registers(i int) *SimulatedRegisters {
	return c.regs[i]
}
