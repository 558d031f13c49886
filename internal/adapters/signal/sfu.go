package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/config"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/sfu"
)

var errNotJoined = errors.New("not joined to a room")

// SfuWSController terminates the conferencing socket. Every inbound
// frame is a request and gets exactly one response carrying the same
// id; server-initiated traffic goes out as event frames.
type SfuWSController struct {
	Rooms   *sfu.Manager
	Limiter *CreateRoomLimiter

	cfg *config.Config
}

func NewSfuWSController(rooms *sfu.Manager, limiter *CreateRoomLimiter, cfg *config.Config) *SfuWSController {
	return &SfuWSController{Rooms: rooms, Limiter: limiter, cfg: cfg}
}

type request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// sfuClient is the per-connection state. Requests are handled one at a
// time on the read loop, so roomID/joined need no lock; Notify may be
// called from any goroutine but only touches the connection.
type sfuClient struct {
	sid  core.SessionID
	conn core.SignalConnection

	roomID domain.RoomID
	joined bool
}

// Notify pushes a room event to this client.
func (cl *sfuClient) Notify(ev sfu.Event) {
	frame := struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: ev.Name(), Data: ev}
	b, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.sfu").Msg("event marshal")
		return
	}
	if err := cl.conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal.sfu").Str("sid", string(cl.sid)).
			Str("event", ev.Name()).Msg("event dropped")
	}
}

func (ctl *SfuWSController) Handle(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal.sfu").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.sfu").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.cfg.SendBuffer)
	cl := &sfuClient{sid: sid, conn: conn}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		conn.writePump(ctx, "signal.sfu", ctl.cfg.PingPeriod)
		conn.Close()
	}()
	go func() {
		defer func() {
			cancel()
			ctl.disconnect(cl)
		}()
		conn.readPump(ctx, "signal.sfu", ctl.cfg.ReadLimit, func(data []byte) {
			ctl.handleRequest(ctx, cl, data)
		})
	}()
}

// disconnect tears the client's conferencing state down after the
// socket is gone. Closing the peer ends its producers, which notifies
// every consuming peer in the room.
func (ctl *SfuWSController) disconnect(cl *sfuClient) {
	if !cl.joined {
		return
	}
	log.Info().Str("module", "signal.sfu").Str("sid", string(cl.sid)).
		Str("room", string(cl.roomID)).Msg("disconnect leave")
	ctl.Rooms.Leave(cl.roomID, cl.sid)
	cl.joined = false
}

func (ctl *SfuWSController) handleRequest(ctx context.Context, cl *sfuClient, data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Warn().Err(err).Str("module", "signal.sfu").Str("sid", string(cl.sid)).Msg("bad frame")
		return
	}

	var (
		resp any
		err  error
	)
	switch req.Method {
	case "createRoom":
		resp, err = ctl.createRoom(ctx, cl, req.Data)
	case "join":
		resp, err = ctl.join(cl, req.Data)
	case "getRouterRtpCapabilities":
		resp, err = ctl.routerRtpCapabilities(cl)
	case "createWebRtcTransport":
		resp, err = ctl.createWebRtcTransport(ctx, cl)
	case "connectTransport":
		resp, err = ctl.connectTransport(ctx, cl, req.Data)
	case "produce":
		resp, err = ctl.produce(ctx, cl, req.Data)
	case "consume":
		resp, err = ctl.consume(ctx, cl, req.Data)
	case "getProducers":
		resp, err = ctl.getProducers(cl)
	case "producerClosed":
		resp, err = ctl.producerClosed(cl, req.Data)
	case "resume":
		// Consumers start unpaused on this engine; ack and move on.
		resp = struct{}{}
	case "exitRoom":
		resp, err = ctl.exitRoom(cl)
	default:
		err = errors.New("unknown method: " + req.Method)
	}

	if err != nil {
		log.Warn().Err(err).Str("module", "signal.sfu").Str("sid", string(cl.sid)).
			Str("method", req.Method).Msg("request failed")
		ctl.replyErr(cl, req.ID, err)
		return
	}
	ctl.reply(cl, req.ID, resp)
}

func (ctl *SfuWSController) reply(cl *sfuClient, id int64, data any) {
	ctl.send(cl, struct {
		ID   int64 `json:"id"`
		OK   bool  `json:"ok"`
		Data any   `json:"data"`
	}{ID: id, OK: true, Data: data})
}

func (ctl *SfuWSController) replyErr(cl *sfuClient, id int64, err error) {
	ctl.send(cl, struct {
		ID    int64  `json:"id"`
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{ID: id, OK: false, Error: err.Error()})
}

func (ctl *SfuWSController) send(cl *sfuClient, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.sfu").Msg("response marshal")
		return
	}
	_ = cl.conn.TrySend(b)
}

// room resolves the client's current room; every room-scoped method
// goes through here so a stale client gets a uniform error.
func (ctl *SfuWSController) room(cl *sfuClient) (*sfu.Room, error) {
	if !cl.joined {
		return nil, errNotJoined
	}
	return ctl.Rooms.Room(cl.roomID)
}
