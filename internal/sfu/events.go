package sfu

import "github.com/dkeye/Arena/internal/core"

// Event is a server-initiated notification to one peer's connection.
// Closed variant set; the signaling adapter maps names to the wire.
type Event interface{ Name() string }

type ProducerInfo struct {
	ProducerID string         `json:"producerId"`
	PeerID     core.SessionID `json:"peerId"`
}

// NewProducers tells existing peers there are fresh tracks to consume.
type NewProducers []ProducerInfo

// ConsumerClosed tells a consuming peer its inbound track ended
// because the remote producer went away.
type ConsumerClosed struct {
	ConsumerID string `json:"consumerId"`
}

func (NewProducers) Name() string { return "newProducers" }
func (ConsumerClosed) Name() string { return "consumerClosed" }

// Notifier delivers events to one peer. Implemented by the signaling
// adapter over its send buffer; delivery is fire-and-forget.
type Notifier interface {
	Notify(Event)
}
