package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Arena/internal/media"
)

func (ctl *SfuWSController) routerRtpCapabilities(cl *sfuClient) (any, error) {
	room, err := ctl.room(cl)
	if err != nil {
		return nil, err
	}
	return room.RouterRTPCapabilities()
}

func (ctl *SfuWSController) createWebRtcTransport(ctx context.Context, cl *sfuClient) (any, error) {
	room, err := ctl.room(cl)
	if err != nil {
		return nil, err
	}
	return room.CreateWebRtcTransport(ctx, cl.sid)
}

func (ctl *SfuWSController) connectTransport(ctx context.Context, cl *sfuClient, data []byte) (any, error) {
	room, err := ctl.room(cl)
	if err != nil {
		return nil, err
	}
	var p struct {
		TransportID string `json:"transportId"`
		media.ConnectParameters
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New("bad payload")
	}
	if err := room.ConnectTransport(ctx, cl.sid, p.TransportID, p.ConnectParameters); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (ctl *SfuWSController) produce(ctx context.Context, cl *sfuClient, data []byte) (any, error) {
	room, err := ctl.room(cl)
	if err != nil {
		return nil, err
	}
	var p struct {
		TransportID   string                   `json:"transportId"`
		Kind          string                   `json:"kind"`
		RtpParameters webrtc.RTPSendParameters `json:"rtpParameters"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New("bad payload")
	}
	kind := webrtc.NewRTPCodecType(p.Kind)
	if kind == webrtc.RTPCodecType(0) {
		return nil, errors.New("bad kind: " + p.Kind)
	}

	producerID, err := room.Produce(ctx, cl.sid, p.TransportID, kind, p.RtpParameters)
	if err != nil {
		return nil, err
	}
	return struct {
		ProducerID string `json:"producerId"`
	}{ProducerID: producerID}, nil
}

func (ctl *SfuWSController) consume(ctx context.Context, cl *sfuClient, data []byte) (any, error) {
	room, err := ctl.room(cl)
	if err != nil {
		return nil, err
	}
	var p struct {
		TransportID     string                 `json:"transportId"`
		ProducerID      string                 `json:"producerId"`
		RtpCapabilities webrtc.RTPCapabilities `json:"rtpCapabilities"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New("bad payload")
	}
	return room.Consume(ctx, cl.sid, p.TransportID, p.ProducerID, p.RtpCapabilities)
}

func (ctl *SfuWSController) getProducers(cl *sfuClient) (any, error) {
	room, err := ctl.room(cl)
	if err != nil {
		return nil, err
	}
	return room.ProducerList(), nil
}

func (ctl *SfuWSController) producerClosed(cl *sfuClient, data []byte) (any, error) {
	room, err := ctl.room(cl)
	if err != nil {
		return nil, err
	}
	var p struct {
		ProducerID string `json:"producerId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New("bad payload")
	}
	if err := room.CloseProducer(cl.sid, p.ProducerID); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}
