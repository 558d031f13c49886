package pion

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type trackState int32

const (
	trackStateOk trackState = iota
	trackStateDelete
)

// outTrack is a single forwarded copy of a producer's stream.
type outTrack struct {
	track *webrtc.TrackLocalStaticRTP
	state atomic.Int32
}

func newOutTrack(track *webrtc.TrackLocalStaticRTP) *outTrack {
	return &outTrack{track: track}
}

func (ot *outTrack) getState() trackState { return trackState(ot.state.Load()) }
func (ot *outTrack) markDelete() { ot.state.Store(int32(trackStateDelete)) }

// relay pumps RTP from a producer's remote track into every consumer's
// local track. One goroutine per producer.
type relay struct {
	src *webrtc.TrackRemote

	mu        sync.RWMutex
	outTracks map[string]*outTrack
}

func newRelay(src *webrtc.TrackRemote) *relay {
	return &relay{
		src:       src,
		outTracks: make(map[string]*outTrack),
	}
}

// loop runs until the source track errors out, which happens when the
// producer's receiver or transport stops. onExit runs exactly once.
func (r *relay) loop(onExit func()) {
	defer onExit()
	for {
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "media.pion").Msg("relay source ended")
			r.markAllDelete()
			return
		}
		r.forward(pkt)
	}
}

func (r *relay) forward(pkt *rtp.Packet) {
	r.mu.RLock()
	snapshot := make(map[string]*outTrack, len(r.outTracks))
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	dirty := make([]string, 0, len(snapshot))
	for id, ot := range snapshot {
		switch ot.getState() {
		case trackStateDelete:
			dirty = append(dirty, id)
		case trackStateOk:
			if err := ot.track.WriteRTP(pkt); err != nil {
				log.Debug().Err(err).Str("module", "media.pion").Str("consumer", id).
					Msg("relay write failed, dropping out track")
				ot.markDelete()
				dirty = append(dirty, id)
			}
		}
	}

	// Cleanup is done outside the read lock.
	if len(dirty) > 0 {
		r.mu.Lock()
		for _, id := range dirty {
			delete(r.outTracks, id)
		}
		r.mu.Unlock()
	}
}

func (r *relay) addOutTrack(id string, ot *outTrack) {
	r.mu.Lock()
	r.outTracks[id] = ot
	r.mu.Unlock()
}

func (r *relay) removeOutTrack(id string) {
	r.mu.Lock()
	if ot, ok := r.outTracks[id]; ok {
		ot.markDelete()
		delete(r.outTracks, id)
	}
	r.mu.Unlock()
}

func (r *relay) markAllDelete() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ot := range r.outTracks {
		ot.markDelete()
	}
}

// producer wraps an RTPReceiver and the relay fed by it.
type producer struct {
	id       string
	kind     webrtc.RTPCodecType
	params   webrtc.RTPParameters
	receiver *webrtc.RTPReceiver
	relay    *relay
	done     chan struct{}

	once      sync.Once
	cbMu      sync.Mutex
	closed    bool
	onCloseCb []func()
}

func (p *producer) ID() string { return p.id }
func (p *producer) Kind() webrtc.RTPCodecType { return p.kind }
func (p *producer) RTPParameters() webrtc.RTPParameters { return p.params }

// OnClose registers fn to run once when the producer ends. A producer
// that already ended runs fn immediately, so a registration racing the
// close never goes silent.
func (p *producer) OnClose(fn func()) {
	p.cbMu.Lock()
	if p.closed {
		p.cbMu.Unlock()
		fn()
		return
	}
	p.onCloseCb = append(p.onCloseCb, fn)
	p.cbMu.Unlock()
}

// enforceBitrateCap keeps re-advertising the configured receive cap to
// the sending client until the producer ends.
func (p *producer) enforceBitrateCap(dtls *webrtc.DTLSTransport, pkt rtcp.Packet) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if _, err := dtls.WriteRTCP([]rtcp.Packet{pkt}); err != nil {
				log.Debug().Err(err).Str("module", "media.pion").Str("producer", p.id).
					Msg("bitrate cap write failed")
				return
			}
		}
	}
}

func (p *producer) Close() error {
	p.close()
	return nil
}

func (p *producer) close() {
	p.once.Do(func() {
		if p.receiver != nil {
			_ = p.receiver.Stop()
		}
		close(p.done)
		p.relay.markAllDelete()
		p.cbMu.Lock()
		p.closed = true
		cbs := p.onCloseCb
		p.onCloseCb = nil
		p.cbMu.Unlock()
		for _, fn := range cbs {
			fn()
		}
		log.Info().Str("module", "media.pion").Str("producer", p.id).Msg("producer closed")
	})
}

// consumer wraps an RTPSender plus its slot in the producer's relay.
type consumer struct {
	id         string
	producerID string
	kind       webrtc.RTPCodecType
	params     webrtc.RTPParameters
	sender     *webrtc.RTPSender
	out        *outTrack
	relay      *relay

	once sync.Once
}

func (c *consumer) ID() string { return c.id }
func (c *consumer) ProducerID() string { return c.producerID }
func (c *consumer) Kind() webrtc.RTPCodecType { return c.kind }
func (c *consumer) RTPParameters() webrtc.RTPParameters { return c.params }
func (c *consumer) Type() string { return "simple" }
func (c *consumer) Paused() bool { return false }

func (c *consumer) Close() error {
	c.once.Do(func() {
		c.relay.removeOutTrack(c.id)
		_ = c.sender.Stop()
		log.Info().Str("module", "media.pion").Str("consumer", c.id).Msg("consumer closed")
	})
	return nil
}
