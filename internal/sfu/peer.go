// Package sfu implements the conferencing-room coordination layer:
// rooms own peers by id, peers own their transports, producers and
// consumers by engine-assigned id. All media flow is delegated to the
// engine behind internal/media.
package sfu

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/media"
)

// Peer is one connected client inside a conferencing room.
type Peer struct {
	id     core.SessionID
	name   string
	notify Notifier

	mu         sync.Mutex
	transports map[string]media.Transport
	producers  map[string]media.Producer
	consumers  map[string]media.Consumer
	closed     bool
}

func NewPeer(id core.SessionID, name string, notify Notifier) *Peer {
	return &Peer{
		id:         id,
		name:       name,
		notify:     notify,
		transports: make(map[string]media.Transport),
		producers:  make(map[string]media.Producer),
		consumers:  make(map[string]media.Consumer),
	}
}

func (p *Peer) ID() core.SessionID { return p.id }
func (p *Peer) Name() string { return p.name }

func (p *Peer) Notify(ev Event) {
	if p.notify != nil {
		p.notify.Notify(ev)
	}
}

func (p *Peer) AddTransport(t media.Transport) {
	p.mu.Lock()
	p.transports[t.ID()] = t
	p.mu.Unlock()
}

func (p *Peer) transport(id string) (media.Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.transports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransportNotFound, id)
	}
	return t, nil
}

func (p *Peer) ConnectTransport(ctx context.Context, transportID string, remote media.ConnectParameters) error {
	t, err := p.transport(transportID)
	if err != nil {
		return err
	}
	return t.Connect(ctx, remote)
}

// Produce creates a producer on the named transport and registers it.
// The producer deregisters itself when the engine ends it.
func (p *Peer) Produce(ctx context.Context, transportID string, kind webrtc.RTPCodecType, params webrtc.RTPSendParameters) (media.Producer, error) {
	t, err := p.transport(transportID)
	if err != nil {
		return nil, err
	}
	prod, err := t.Produce(ctx, kind, params)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.producers[prod.ID()] = prod
	p.mu.Unlock()

	prod.OnClose(func() {
		p.mu.Lock()
		delete(p.producers, prod.ID())
		p.mu.Unlock()
	})
	return prod, nil
}

// CreateConsumer attaches an inbound track from a remote producer via
// the named transport.
func (p *Peer) CreateConsumer(ctx context.Context, transportID string, prod media.Producer, caps webrtc.RTPCapabilities) (media.Consumer, error) {
	t, err := p.transport(transportID)
	if err != nil {
		return nil, err
	}
	cons, err := t.Consume(ctx, prod, caps)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.consumers[cons.ID()] = cons
	p.mu.Unlock()
	return cons, nil
}

func (p *Peer) RemoveConsumer(id string) {
	p.mu.Lock()
	cons, ok := p.consumers[id]
	delete(p.consumers, id)
	p.mu.Unlock()
	if ok {
		_ = cons.Close()
	}
}

func (p *Peer) CloseProducer(id string) error {
	p.mu.Lock()
	prod, ok := p.producers[id]
	delete(p.producers, id)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrProducerNotFound, id)
	}
	return prod.Close()
}

// Producer looks up one of the peer's own producers by id.
func (p *Peer) Producer(id string) (media.Producer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.producers[id]
	return prod, ok
}

// ProducerIDs snapshots the peer's currently open producer ids.
func (p *Peer) ProducerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.producers))
	for id := range p.producers {
		out = append(out, id)
	}
	return out
}

// Close tears down the peer's transports, which cascades to its
// producers and consumers inside the engine. Idempotent.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	transports := p.transports
	p.transports = make(map[string]media.Transport)
	p.producers = make(map[string]media.Producer)
	p.consumers = make(map[string]media.Consumer)
	p.mu.Unlock()

	for _, t := range transports {
		_ = t.Close()
	}
	log.Info().Str("module", "sfu.peer").Str("peer", string(p.id)).Msg("peer closed")
}

type PeerInfo struct {
	ID   core.SessionID `json:"id"`
	Name string         `json:"name"`
}
