package pion

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

func TestBitrateCapPacket(t *testing.T) {
	encodings := []webrtc.RTPEncodingParameters{
		{RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: 1111}},
		{RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: 2222}},
	}
	pkt := bitrateCap(1_500_000, encodings)

	remb, ok := pkt.(*rtcp.ReceiverEstimatedMaximumBitrate)
	if !ok {
		t.Fatalf("packet type = %T, want *rtcp.ReceiverEstimatedMaximumBitrate", pkt)
	}
	if remb.Bitrate != 1_500_000 {
		t.Fatalf("bitrate = %v, want 1500000", remb.Bitrate)
	}
	if len(remb.SSRCs) != 2 || remb.SSRCs[0] != 1111 || remb.SSRCs[1] != 2222 {
		t.Fatalf("ssrcs = %v, want [1111 2222]", remb.SSRCs)
	}
}

func TestProducerOnCloseAfterEnd(t *testing.T) {
	p := &producer{relay: newRelay(nil), done: make(chan struct{})}
	p.close()

	fired := 0
	p.OnClose(func() { fired++ })
	if fired != 1 {
		t.Fatalf("late registration fired %d times, want 1", fired)
	}
	p.close()
	if fired != 1 {
		t.Fatalf("callback fired %d times after double close, want 1", fired)
	}
}

func TestProducerOnCloseFiresOnce(t *testing.T) {
	p := &producer{relay: newRelay(nil), done: make(chan struct{})}
	fired := 0
	p.OnClose(func() { fired++ })
	p.close()
	p.close()
	if fired != 1 {
		t.Fatalf("callback fired %d times, want 1", fired)
	}
}
