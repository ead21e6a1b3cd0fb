package advice

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"energy-advisor/internal/homes"
	"energy-advisor/internal/shared/server/respond"
	"energy-advisor/internal/shared/telemetry"
)

const (
	wsWriteWait = 10 * time.Second
	wsCloseWait = time.Second
)

// HomeGetter loads the home a stream is generated for.
type HomeGetter interface {
	Get(ctx context.Context, homeID string) (homes.Home, error)
}

// Handler exposes the advice stream over SSE and WebSocket.
type Handler struct {
	Homes    HomeGetter
	Streamer *Streamer
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler. allowedOrigins restricts WebSocket
// upgrades; an empty list or "*" accepts any origin.
func NewHandler(homeGetter HomeGetter, streamer *Streamer, allowedOrigins []string) *Handler {
	return &Handler{
		Homes:    homeGetter,
		Streamer: streamer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// RegisterRoutes attaches advice routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/homes/:id/advice", h.streamSSE)
	rg.GET("/homes/:id/advice/ws", h.streamWS)
}

func (h *Handler) loadHome(c *gin.Context) (homes.Home, bool) {
	homeID := strings.TrimSpace(c.Param("id"))
	if homeID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "home id is required", nil)
		return homes.Home{}, false
	}
	c.Set("homeId", homeID)
	home, err := h.Homes.Get(c.Request.Context(), homeID)
	if err != nil {
		switch {
		case errors.Is(err, homes.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "home not found", nil)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load home", nil)
		}
		return homes.Home{}, false
	}
	return home, true
}

func (h *Handler) streamSSE(c *gin.Context) {
	home, ok := h.loadHome(c)
	if !ok {
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	err := h.Streamer.Stream(c.Request.Context(), home, func(ev Event) error {
		return writeSSE(c.Writer, ev)
	})
	if err != nil {
		telemetry.Info("advice.sse.aborted", map[string]any{
			"home_id": home.ID,
			"error":   err,
		})
	}
}

func (h *Handler) streamWS(c *gin.Context) {
	home, ok := h.loadHome(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		telemetry.Warn("advice.ws.upgrade_failed", map[string]any{
			"home_id": home.ID,
			"error":   err,
		})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client sends nothing; reading only detects the connection going away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	err = h.Streamer.Stream(ctx, home, func(ev Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(ev)
	})
	if err != nil {
		telemetry.Info("advice.ws.aborted", map[string]any{
			"home_id": home.ID,
			"error":   err,
		})
	} else {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteWait))
		// Give the peer a moment to answer the close handshake.
		select {
		case <-readerDone:
		case <-time.After(wsCloseWait):
		}
	}
	_ = conn.Close()
	<-readerDone
}

func originChecker(allowed []string) func(*http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins[trimmed] = struct{}{}
		}
	}
	_, allowAll := origins["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll || len(origins) == 0 {
			return true
		}
		_, ok := origins[origin]
		return ok
	}
}
