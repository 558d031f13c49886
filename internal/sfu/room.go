package sfu

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/media"
)

// Room brokers the signaling handshake between its peers and the
// shared router. One instance per active conferencing room.
type Room struct {
	id     domain.RoomID
	router media.Router
	opts   media.TransportOptions

	mu    sync.RWMutex
	peers map[core.SessionID]*Peer
}

// newRoom creates the room with its router in place. Construction is
// synchronous, so the readiness invariant on capability and transport
// requests holds by the time the caller sees the room.
func newRoom(ctx context.Context, id domain.RoomID, worker media.Worker, opts media.TransportOptions) (*Room, error) {
	router, err := worker.CreateRouter(ctx)
	if err != nil {
		return nil, fmt.Errorf("create router for room %s: %w", id, err)
	}
	return &Room{
		id:     id,
		router: router,
		opts:   opts,
		peers:  make(map[core.SessionID]*Peer),
	}, nil
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) AddPeer(p *Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrPeerExists, p.ID())
	}
	r.peers[p.ID()] = p
	log.Info().Str("module", "sfu.room").Str("room", string(r.id)).
		Str("peer", string(p.ID())).Str("name", p.Name()).Msg("peer joined")
	return nil
}

// RemovePeer deletes the peer and closes its transports, cascading to
// producers and consumers. Removing an absent peer is a no-op so the
// graceful-exit and disconnect paths can both call it.
func (r *Room) RemovePeer(id core.SessionID) {
	r.mu.Lock()
	p, ok := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	p.Close()
	log.Info().Str("module", "sfu.room").Str("room", string(r.id)).
		Str("peer", string(id)).Msg("peer removed")
}

func (r *Room) peer(id core.SessionID) (*Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, id)
	}
	return p, nil
}

func (r *Room) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Room) Roster() []PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, PeerInfo{ID: p.ID(), Name: p.Name()})
	}
	return out
}

func (r *Room) RouterRTPCapabilities() (webrtc.RTPCapabilities, error) {
	if r.router == nil {
		return webrtc.RTPCapabilities{}, ErrRoomNotReady
	}
	return r.router.RTPCapabilities(), nil
}

// TransportParams is what the client needs to complete the handshake.
type TransportParams struct {
	ID             string                `json:"id"`
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
	ICECandidates  []webrtc.ICECandidate `json:"iceCandidates"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

func (r *Room) CreateWebRtcTransport(ctx context.Context, peerID core.SessionID) (*TransportParams, error) {
	if r.router == nil {
		return nil, ErrRoomNotReady
	}
	p, err := r.peer(peerID)
	if err != nil {
		return nil, err
	}
	t, err := r.router.CreateTransport(ctx, r.opts)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	// The peer may have disconnected while the engine was gathering.
	if _, err := r.peer(peerID); err != nil {
		_ = t.Close()
		return nil, err
	}
	p.AddTransport(t)

	return &TransportParams{
		ID:             t.ID(),
		ICEParameters:  t.ICEParameters(),
		ICECandidates:  t.ICECandidates(),
		DTLSParameters: t.DTLSParameters(),
	}, nil
}

func (r *Room) ConnectTransport(ctx context.Context, peerID core.SessionID, transportID string, remote media.ConnectParameters) error {
	p, err := r.peer(peerID)
	if err != nil {
		return err
	}
	return p.ConnectTransport(ctx, transportID, remote)
}

// Produce creates a producer on the peer's transport and tells every
// other peer in the room there is a new track to consume.
func (r *Room) Produce(ctx context.Context, peerID core.SessionID, transportID string, kind webrtc.RTPCodecType, params webrtc.RTPSendParameters) (string, error) {
	p, err := r.peer(peerID)
	if err != nil {
		return "", err
	}
	prod, err := p.Produce(ctx, transportID, kind, params)
	if err != nil {
		return "", err
	}

	r.broadcast(peerID, NewProducers{{ProducerID: prod.ID(), PeerID: peerID}})
	log.Info().Str("module", "sfu.room").Str("room", string(r.id)).
		Str("peer", string(peerID)).Str("producer", prod.ID()).
		Str("kind", kind.String()).Msg("producer announced")
	return prod.ID(), nil
}

// ConsumerParams is what the client needs to attach an inbound track.
type ConsumerParams struct {
	ID             string               `json:"id"`
	ProducerID     string               `json:"producerId"`
	Kind           string               `json:"kind"`
	RTPParameters  webrtc.RTPParameters `json:"rtpParameters"`
	Type           string               `json:"type"`
	ProducerPaused bool                 `json:"producerPaused"`
}

// Consume bridges a remote producer to the requesting peer. A
// capability mismatch is reported as ErrCannotConsume without touching
// peer state; the client is expected to not retry that producer.
func (r *Room) Consume(ctx context.Context, peerID core.SessionID, transportID, producerID string, caps webrtc.RTPCapabilities) (*ConsumerParams, error) {
	p, err := r.peer(peerID)
	if err != nil {
		return nil, err
	}
	prod, ok := r.findProducer(producerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProducerNotFound, producerID)
	}
	if !r.router.CanConsume(prod, caps) {
		log.Warn().Str("module", "sfu.room").Str("room", string(r.id)).
			Str("peer", string(peerID)).Str("producer", producerID).Msg("cannot consume")
		return nil, fmt.Errorf("%w: %s", ErrCannotConsume, producerID)
	}

	cons, err := p.CreateConsumer(ctx, transportID, prod, caps)
	if err != nil {
		return nil, err
	}

	// When the producer ends, drop the consumer server-side and tell
	// the consuming peer so it can detach the track.
	consumerID := cons.ID()
	prod.OnClose(func() {
		p.RemoveConsumer(consumerID)
		p.Notify(ConsumerClosed{ConsumerID: consumerID})
	})

	return &ConsumerParams{
		ID:             cons.ID(),
		ProducerID:     producerID,
		Kind:           cons.Kind().String(),
		RTPParameters:  cons.RTPParameters(),
		Type:           cons.Type(),
		ProducerPaused: cons.Paused(),
	}, nil
}

func (r *Room) CloseProducer(peerID core.SessionID, producerID string) error {
	p, err := r.peer(peerID)
	if err != nil {
		return err
	}
	return p.CloseProducer(producerID)
}

// ProducerList enumerates every open producer in the room, used to
// backfill a freshly joined peer with the existing tracks.
func (r *Room) ProducerList() []ProducerInfo {
	r.mu.RLock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	var out []ProducerInfo
	for _, p := range peers {
		for _, id := range p.ProducerIDs() {
			out = append(out, ProducerInfo{ProducerID: id, PeerID: p.ID()})
		}
	}
	return out
}

func (r *Room) findProducer(id string) (media.Producer, bool) {
	r.mu.RLock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	for _, p := range peers {
		if prod, ok := p.Producer(id); ok {
			return prod, true
		}
	}
	return nil, false
}

func (r *Room) broadcast(exclude core.SessionID, ev Event) {
	r.mu.RLock()
	peers := make([]*Peer, 0, len(r.peers))
	for id, p := range r.peers {
		if id != exclude {
			peers = append(peers, p)
		}
	}
	r.mu.RUnlock()

	for _, p := range peers {
		p.Notify(ev)
	}
}

// close releases the router. Called by the manager once the last peer
// is gone.
func (r *Room) close() {
	if r.router != nil {
		_ = r.router.Close()
	}
	log.Info().Str("module", "sfu.room").Str("room", string(r.id)).Msg("room closed")
}
