package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/adapters/signal"
	"github.com/dkeye/Arena/internal/config"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/dkeye/Arena/internal/presence"
	"github.com/dkeye/Arena/internal/sfu"
	"github.com/dkeye/Arena/internal/spaces"
)

// Deps is everything the router hands to its controllers.
type Deps struct {
	Spaces   *spaces.Store
	Dir      *presence.Directory
	Rooms    *sfu.Manager
	Verifier core.TokenVerifier
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable session id cookie
// that both websockets use as the session key.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ArenaSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	spaceCtl := signal.NewSpaceWSController(deps.Dir, deps.Verifier, deps.Spaces, cfg)
	api.GET("/ws/space", func(c *gin.Context) {
		spaceCtl.Handle(ctx, c)
	})

	limiter := signal.NewCreateRoomLimiter(cfg.SFU.CreateRoomLimit, cfg.SFU.CreateRoomInterval)
	sfuCtl := signal.NewSfuWSController(deps.Rooms, limiter, cfg)
	api.GET("/ws/sfu", func(c *gin.Context) {
		sfuCtl.Handle(ctx, c)
	})

	api.POST("/spaces", func(c *gin.Context) {
		var body struct {
			Name   string `json:"name"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
			return
		}
		space, err := deps.Spaces.Create(body.Name, body.Width, body.Height)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, space)
	})

	// Id-preserving registration, for records owned by an external
	// backend that already assigned the space its id.
	api.PUT("/spaces/:id", func(c *gin.Context) {
		var body struct {
			Name   string `json:"name"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
			return
		}
		space, err := domain.NewSpace(domain.SpaceID(c.Param("id")), body.Name, body.Width, body.Height)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		deps.Spaces.Put(space)
		c.JSON(http.StatusOK, space)
	})

	api.GET("/spaces", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Spaces.List())
	})

	api.GET("/spaces/:id", func(c *gin.Context) {
		space, err := deps.Spaces.Space(c.Request.Context(), domain.SpaceID(c.Param("id")))
		if err != nil {
			if errors.Is(err, core.ErrSpaceNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "space not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, space)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Dir.Rooms())
	})

	api.GET("/sfu/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Rooms.List())
	})

	return r
}
