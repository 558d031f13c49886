// Package pion implements the media engine boundary over pion's ORTC
// API. One Worker per UDP port slice, one Router per room; forwarding
// is plain RTP relay from a producer's remote track to each consumer's
// local track, no transcoding.
package pion

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/media"
)

type Config struct {
	Workers     int
	RTCMinPort  uint16
	RTCMaxPort  uint16
	AnnouncedIP string
}

// defaultCodecs is the fixed capability set routers are created with.
// Not user-supplied; clients negotiate against it.
var defaultCodecs = []webrtc.RTPCodecParameters{
	{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	},
	{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
		},
		PayloadType: 96,
	},
}

// NewWorkers builds the engine worker set, splitting the configured
// UDP port range evenly across workers.
func NewWorkers(cfg Config) ([]media.Worker, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("pion: worker count must be positive, got %d", cfg.Workers)
	}
	if cfg.RTCMaxPort <= cfg.RTCMinPort {
		return nil, fmt.Errorf("pion: bad port range [%d,%d]", cfg.RTCMinPort, cfg.RTCMaxPort)
	}

	span := (cfg.RTCMaxPort - cfg.RTCMinPort + 1) / uint16(cfg.Workers)
	if span == 0 {
		return nil, fmt.Errorf("pion: port range too small for %d workers", cfg.Workers)
	}

	workers := make([]media.Worker, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		lo := cfg.RTCMinPort + uint16(i)*span
		hi := lo + span - 1

		me := &webrtc.MediaEngine{}
		for _, c := range defaultCodecs {
			kind := webrtc.RTPCodecTypeAudio
			if strings.HasPrefix(c.MimeType, "video/") {
				kind = webrtc.RTPCodecTypeVideo
			}
			if err := me.RegisterCodec(c, kind); err != nil {
				return nil, fmt.Errorf("pion: register codec %s: %w", c.MimeType, err)
			}
		}

		se := webrtc.SettingEngine{}
		if err := se.SetEphemeralUDPPortRange(lo, hi); err != nil {
			return nil, fmt.Errorf("pion: port range worker %d: %w", i, err)
		}
		if cfg.AnnouncedIP != "" {
			se.SetNAT1To1IPs([]string{cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
		}

		workers = append(workers, &worker{
			idx: i,
			api: webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se)),
		})
		log.Info().Str("module", "media.pion").Int("worker", i).
			Uint16("port_min", lo).Uint16("port_max", hi).Msg("worker ready")
	}
	return workers, nil
}

type worker struct {
	idx int
	api *webrtc.API
}

func (w *worker) CreateRouter(context.Context) (media.Router, error) {
	caps := webrtc.RTPCapabilities{}
	for _, c := range defaultCodecs {
		caps.Codecs = append(caps.Codecs, c.RTPCodecCapability)
	}
	return &router{api: w.api, caps: caps}, nil
}

// Close is bookkeeping only: a worker holds no resources of its own,
// transports own the sockets.
func (w *worker) Close() error { return nil }

type router struct {
	api  *webrtc.API
	caps webrtc.RTPCapabilities

	mu         sync.Mutex
	transports []*transport
	closed     bool
}

func (r *router) RTPCapabilities() webrtc.RTPCapabilities { return r.caps }

func (r *router) CreateTransport(ctx context.Context, opts media.TransportOptions) (media.Transport, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("pion: router closed")
	}
	r.mu.Unlock()

	t, err := newTransport(ctx, r.api, opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.transports = append(r.transports, t)
	r.mu.Unlock()
	return t, nil
}

func (r *router) CanConsume(producer media.Producer, caps webrtc.RTPCapabilities) bool {
	codecs := producer.RTPParameters().Codecs
	if len(codecs) == 0 {
		return false
	}
	want := codecs[0]
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, want.MimeType) && c.ClockRate == want.ClockRate {
			return true
		}
	}
	return false
}

func (r *router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	transports := r.transports
	r.transports = nil
	r.mu.Unlock()

	for _, t := range transports {
		_ = t.Close()
	}
	return nil
}
