package game

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler exposes the HTTP surface: one REST call to mint a room code
// and the websocket endpoint everything else flows through.
type Handler struct {
	registry *Registry
	gateway  *Gateway
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(registry *Registry, gateway *Gateway, allowedOrigins []string, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		gateway:  gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.With().Str("component", "handlers").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/create-room", h.CreateRoomHandler)
	r.GET("/ws", h.WebsocketHandler)
}

func (h *Handler) CreateRoomHandler(ctx *gin.Context) {
	roomID, err := h.registry.CreateRoom()
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"roomId": roomID})
}

func (h *Handler) WebsocketHandler(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("ws upgrade failed")
		return
	}

	session := newWebsocketConnection(conn)
	go h.gateway.Serve(session)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		// Same-host deployments serve the client themselves.
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
