package signal

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/config"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/presence"
)

// SpaceWSController terminates the presence socket: one websocket per
// client session, one presence.Session state machine behind it.
type SpaceWSController struct {
	Dir      *presence.Directory
	Verifier core.TokenVerifier
	Spaces   core.SpaceLookup

	cfg *config.Config
}

func NewSpaceWSController(dir *presence.Directory, verifier core.TokenVerifier, spaces core.SpaceLookup, cfg *config.Config) *SpaceWSController {
	return &SpaceWSController{Dir: dir, Verifier: verifier, Spaces: spaces, cfg: cfg}
}

func (ctl *SpaceWSController) Handle(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal.space").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.space").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.cfg.SendBuffer)
	sess := presence.NewSession(sid, conn, ctl.Dir, ctl.Verifier, ctl.Spaces)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		conn.writePump(ctx, "signal.space", ctl.cfg.PingPeriod)
		conn.Close()
	}()
	go func() {
		defer func() {
			cancel()
			sess.Destroy()
		}()
		conn.readPump(ctx, "signal.space", ctl.cfg.ReadLimit, func(data []byte) {
			ctl.dispatch(ctx, sess, conn, data)
		})
	}()
}

func (ctl *SpaceWSController) dispatch(ctx context.Context, sess *presence.Session, conn *WsSignalConn, data []byte) {
	msg, err := presence.DecodeInbound(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal.space").Str("sid", string(sess.ID())).Msg("bad frame")
		return
	}

	switch m := msg.(type) {
	case presence.Join:
		if err := sess.Join(ctx, m); err != nil {
			log.Warn().Err(err).Str("module", "signal.space").Str("sid", string(sess.ID())).Msg("join refused")
			// A client that cannot authenticate or names a space that
			// does not exist has nothing further to say here.
			if errors.Is(err, core.ErrAuth) || errors.Is(err, core.ErrSpaceNotFound) {
				conn.Close()
			}
		}
	case presence.Move:
		// Invalid moves are answered inside the session with a
		// movement-rejected frame; nothing to do with the error.
		_ = sess.Move(m)
	}
}
