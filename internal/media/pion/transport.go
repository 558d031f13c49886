package pion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/media"
)

var (
	errTransportClosed = errors.New("pion: transport closed")
	errForeignProducer = errors.New("pion: producer from another engine")
)

type transport struct {
	id   string
	api  *webrtc.API
	opts media.TransportOptions

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport

	iceParams  webrtc.ICEParameters
	candidates []webrtc.ICECandidate
	dtlsParams webrtc.DTLSParameters

	mu        sync.Mutex
	producers []*producer
	consumers []*consumer
	closed    bool
}

func newTransport(ctx context.Context, api *webrtc.API, opts media.TransportOptions) (*transport, error) {
	gatherer, err := api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("pion: new gatherer: %w", err)
	}
	ice := api.NewICETransport(gatherer)
	dtls, err := api.NewDTLSTransport(ice, nil)
	if err != nil {
		return nil, fmt.Errorf("pion: new dtls transport: %w", err)
	}

	gatherDone := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherDone)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, fmt.Errorf("pion: gather: %w", err)
	}
	select {
	case <-gatherDone:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return nil, fmt.Errorf("pion: local candidates: %w", err)
	}
	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		return nil, fmt.Errorf("pion: local ice parameters: %w", err)
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return nil, fmt.Errorf("pion: local dtls parameters: %w", err)
	}

	return &transport{
		id:         uuid.NewString(),
		api:        api,
		opts:       opts,
		gatherer:   gatherer,
		ice:        ice,
		dtls:       dtls,
		iceParams:  iceParams,
		candidates: candidates,
		dtlsParams: dtlsParams,
	}, nil
}

func (t *transport) ID() string { return t.id }
func (t *transport) ICEParameters() webrtc.ICEParameters { return t.iceParams }
func (t *transport) ICECandidates() []webrtc.ICECandidate { return t.candidates }
func (t *transport) DTLSParameters() webrtc.DTLSParameters { return t.dtlsParams }

// Connect starts ICE as the controlled side and completes the DTLS
// handshake with the client's parameters.
func (t *transport) Connect(_ context.Context, remote media.ConnectParameters) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errTransportClosed
	}
	t.mu.Unlock()

	role := webrtc.ICERoleControlled
	if err := t.ice.Start(nil, remote.ICEParameters, &role); err != nil {
		return fmt.Errorf("pion: ice start: %w", err)
	}
	if err := t.dtls.Start(remote.DTLSParameters); err != nil {
		return fmt.Errorf("pion: dtls start: %w", err)
	}
	log.Info().Str("module", "media.pion").Str("transport", t.id).Msg("transport connected")
	return nil
}

func (t *transport) Produce(_ context.Context, kind webrtc.RTPCodecType, params webrtc.RTPSendParameters) (media.Producer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errTransportClosed
	}
	if len(params.Encodings) == 0 {
		return nil, fmt.Errorf("pion: produce without encodings")
	}

	receiver, err := t.api.NewRTPReceiver(kind, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("pion: new receiver: %w", err)
	}
	recvParams := webrtc.RTPReceiveParameters{}
	for _, enc := range params.Encodings {
		recvParams.Encodings = append(recvParams.Encodings, webrtc.RTPDecodingParameters{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				RID:         enc.RID,
				SSRC:        enc.SSRC,
				PayloadType: enc.PayloadType,
			},
		})
	}
	if err := receiver.Receive(recvParams); err != nil {
		return nil, fmt.Errorf("pion: receive: %w", err)
	}

	p := &producer{
		id:       uuid.NewString(),
		kind:     kind,
		params:   params.RTPParameters,
		receiver: receiver,
		relay:    newRelay(receiver.Track()),
		done:     make(chan struct{}),
	}
	go p.relay.loop(p.close)
	if t.opts.MaxIncomingBitrate > 0 {
		go p.enforceBitrateCap(t.dtls, bitrateCap(t.opts.MaxIncomingBitrate, params.Encodings))
	}

	t.producers = append(t.producers, p)
	log.Info().Str("module", "media.pion").Str("transport", t.id).
		Str("producer", p.id).Str("kind", kind.String()).Msg("producer created")
	return p, nil
}

// bitrateCap builds the REMB packet advertising the configured receive
// cap for the producer's streams.
func bitrateCap(maxBitrate uint64, encodings []webrtc.RTPEncodingParameters) rtcp.Packet {
	ssrcs := make([]uint32, 0, len(encodings))
	for _, enc := range encodings {
		ssrcs = append(ssrcs, uint32(enc.SSRC))
	}
	return &rtcp.ReceiverEstimatedMaximumBitrate{Bitrate: float32(maxBitrate), SSRCs: ssrcs}
}

func (t *transport) Consume(_ context.Context, prod media.Producer, caps webrtc.RTPCapabilities) (media.Consumer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errTransportClosed
	}

	src, ok := prod.(*producer)
	if !ok {
		return nil, errForeignProducer
	}
	codecs := src.params.Codecs
	if len(codecs) == 0 {
		return nil, fmt.Errorf("pion: producer %s has no codec", src.id)
	}

	local, err := webrtc.NewTrackLocalStaticRTP(codecs[0].RTPCodecCapability, src.id, "arena")
	if err != nil {
		return nil, fmt.Errorf("pion: new local track: %w", err)
	}
	sender, err := t.api.NewRTPSender(local, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("pion: new sender: %w", err)
	}
	if err := sender.Send(sender.GetParameters()); err != nil {
		return nil, fmt.Errorf("pion: sender send: %w", err)
	}

	c := &consumer{
		id:         uuid.NewString(),
		producerID: src.id,
		kind:       src.kind,
		params:     src.params,
		sender:     sender,
		out:        newOutTrack(local),
		relay:      src.relay,
	}
	src.relay.addOutTrack(c.id, c.out)

	t.consumers = append(t.consumers, c)
	log.Info().Str("module", "media.pion").Str("transport", t.id).
		Str("consumer", c.id).Str("producer", src.id).Msg("consumer created")
	return c, nil
}

// Close tears down the channel and everything flowing over it.
// Producers fire their close callbacks so the coordinator can notify
// consuming peers.
func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	producers := t.producers
	consumers := t.consumers
	t.producers, t.consumers = nil, nil
	t.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
	for _, p := range producers {
		_ = p.Close()
	}

	var errs []error
	if err := t.dtls.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := t.ice.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := t.gatherer.Close(); err != nil {
		errs = append(errs, err)
	}
	log.Info().Str("module", "media.pion").Str("transport", t.id).Msg("transport closed")
	return errors.Join(errs...)
}
