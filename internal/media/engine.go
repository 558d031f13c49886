// Package media defines the boundary to the WebRTC engine the SFU
// coordinator does bookkeeping around. The coordinator owns rooms,
// peers and id registries; the engine owns ICE/DTLS/SRTP and packet
// forwarding. Parameter types are pion's so the production engine in
// media/pion needs no translation layer.
package media

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Worker is one engine process slice with its own transport port range.
// Routers are placed on workers round-robin by the pool.
type Worker interface {
	CreateRouter(ctx context.Context) (Router, error)
	Close() error
}

// Router is the per-room capability-negotiation and forwarding hub.
type Router interface {
	RTPCapabilities() webrtc.RTPCapabilities
	CreateTransport(ctx context.Context, opts TransportOptions) (Transport, error)
	// CanConsume reports whether the producer's format can be bridged
	// to the given receiver capabilities.
	CanConsume(producer Producer, caps webrtc.RTPCapabilities) bool
	Close() error
}

type TransportOptions struct {
	MaxIncomingBitrate uint64
}

// ConnectParameters is the client half of the transport handshake.
type ConnectParameters struct {
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
}

// Transport is a negotiated network channel. Closing it cascades to
// every producer and consumer flowing over it.
type Transport interface {
	ID() string
	ICEParameters() webrtc.ICEParameters
	ICECandidates() []webrtc.ICECandidate
	DTLSParameters() webrtc.DTLSParameters
	Connect(ctx context.Context, remote ConnectParameters) error
	Produce(ctx context.Context, kind webrtc.RTPCodecType, params webrtc.RTPSendParameters) (Producer, error)
	Consume(ctx context.Context, producer Producer, caps webrtc.RTPCapabilities) (Consumer, error)
	Close() error
}

// Producer is a published inbound track.
type Producer interface {
	ID() string
	Kind() webrtc.RTPCodecType
	RTPParameters() webrtc.RTPParameters
	// OnClose registers a callback fired exactly once when the producer
	// ends, whether by command or by its transport going away.
	// Registering on an already-ended producer fires immediately.
	OnClose(func())
	Close() error
}

// Consumer is a forwarded outbound track built from a Producer.
type Consumer interface {
	ID() string
	ProducerID() string
	Kind() webrtc.RTPCodecType
	RTPParameters() webrtc.RTPParameters
	// Type is the forwarding mode, always "simple" in this engine.
	Type() string
	Paused() bool
	Close() error
}
