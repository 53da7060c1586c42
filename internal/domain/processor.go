package domain

import (
	nostr "github.com/nbd-wtf/go-nostr"
)

// EventProcessor receives every unique inbound event exactly once, from the
// client's dispatch goroutine. Implementations must not block.
type EventProcessor interface {
	Process(evt *nostr.Event)
}

// ProcessorFunc adapts a plain function to EventProcessor.
type ProcessorFunc func(evt *nostr.Event)

func (f ProcessorFunc) Process(evt *nostr.Event) { f(evt) }

// MultiProcessor fans one event out to several processors in order.
type MultiProcessor []EventProcessor

func (m MultiProcessor) Process(evt *nostr.Event) {
	for _, p := range m {
		p.Process(evt)
	}
}
