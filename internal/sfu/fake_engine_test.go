package sfu

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Arena/internal/media"
)

// In-memory engine standing in for media/pion: same bookkeeping and
// cascade semantics, no sockets.

type fakeWorker struct {
	mu      sync.Mutex
	routers int
}

func (w *fakeWorker) CreateRouter(context.Context) (media.Router, error) {
	w.mu.Lock()
	w.routers++
	w.mu.Unlock()
	return &fakeRouter{
		caps: webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
			{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		}},
	}, nil
}

func (w *fakeWorker) Close() error { return nil }

type fakeRouter struct {
	caps   webrtc.RTPCapabilities
	mu     sync.Mutex
	closed bool
	nextID int
}

func (r *fakeRouter) RTPCapabilities() webrtc.RTPCapabilities { return r.caps }

func (r *fakeRouter) CreateTransport(context.Context, media.TransportOptions) (media.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("router closed")
	}
	r.nextID++
	return &fakeTransport{id: fmt.Sprintf("t-%d", r.nextID), router: r}, nil
}

func (r *fakeRouter) CanConsume(p media.Producer, caps webrtc.RTPCapabilities) bool {
	codecs := p.RTPParameters().Codecs
	if len(codecs) == 0 {
		return false
	}
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, codecs[0].MimeType) {
			return true
		}
	}
	return false
}

func (r *fakeRouter) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type fakeTransport struct {
	id     string
	router *fakeRouter

	mu        sync.Mutex
	connected bool
	closed    bool
	producers []*fakeProducer
	consumers []*fakeConsumer
}

func (t *fakeTransport) ID() string { return t.id }
func (t *fakeTransport) ICEParameters() webrtc.ICEParameters { return webrtc.ICEParameters{UsernameFragment: "ufrag-" + t.id} }
func (t *fakeTransport) ICECandidates() []webrtc.ICECandidate { return nil }
func (t *fakeTransport) DTLSParameters() webrtc.DTLSParameters { return webrtc.DTLSParameters{} }

func (t *fakeTransport) Connect(context.Context, media.ConnectParameters) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Produce(_ context.Context, kind webrtc.RTPCodecType, params webrtc.RTPSendParameters) (media.Producer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}
	p := &fakeProducer{
		id:     fmt.Sprintf("%s-p-%d", t.id, len(t.producers)+1),
		kind:   kind,
		params: params.RTPParameters,
	}
	t.producers = append(t.producers, p)
	return p, nil
}

func (t *fakeTransport) Consume(_ context.Context, prod media.Producer, _ webrtc.RTPCapabilities) (media.Consumer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}
	c := &fakeConsumer{
		id:         fmt.Sprintf("%s-c-%d", t.id, len(t.consumers)+1),
		producerID: prod.ID(),
		kind:       prod.Kind(),
		params:     prod.RTPParameters(),
	}
	t.consumers = append(t.consumers, c)
	return c, nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	producers := t.producers
	t.mu.Unlock()
	for _, p := range producers {
		_ = p.Close()
	}
	return nil
}

type fakeProducer struct {
	id     string
	kind   webrtc.RTPCodecType
	params webrtc.RTPParameters

	mu     sync.Mutex
	closed bool
	cbs    []func()
}

func (p *fakeProducer) ID() string { return p.id }
func (p *fakeProducer) Kind() webrtc.RTPCodecType { return p.kind }
func (p *fakeProducer) RTPParameters() webrtc.RTPParameters { return p.params }

func (p *fakeProducer) OnClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.cbs = append(p.cbs, fn)
	p.mu.Unlock()
}

func (p *fakeProducer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cbs := p.cbs
	p.cbs = nil
	p.mu.Unlock()
	for _, fn := range cbs {
		fn()
	}
	return nil
}

type fakeConsumer struct {
	id         string
	producerID string
	kind       webrtc.RTPCodecType
	params     webrtc.RTPParameters

	mu     sync.Mutex
	closed bool
}

func (c *fakeConsumer) ID() string { return c.id }
func (c *fakeConsumer) ProducerID() string { return c.producerID }
func (c *fakeConsumer) Kind() webrtc.RTPCodecType { return c.kind }
func (c *fakeConsumer) RTPParameters() webrtc.RTPParameters { return c.params }
func (c *fakeConsumer) Type() string { return "simple" }
func (c *fakeConsumer) Paused() bool { return false }

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *fakeNotifier) Notify(ev Event) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *fakeNotifier) byName(name string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, ev := range n.events {
		if ev.Name() == name {
			out = append(out, ev)
		}
	}
	return out
}
