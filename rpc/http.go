package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/contracttrader/broker"
)

// StatusFor picks the HTTP status for a response. The body is the same
// uniform shape either way.
func StatusFor(resp Response) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.Kind {
	case broker.KindInvalidIntent:
		return http.StatusBadRequest
	case broker.KindProtocolFault:
		return http.StatusUnprocessableEntity
	case broker.KindTimeout:
		return http.StatusGatewayTimeout
	case broker.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewRouter exposes the handler over HTTP:
//
//	POST /api/trade  Request -> Response
//	GET  /healthz
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(h.log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/api/trade", func(c *gin.Context) {
		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			resp := Failure(broker.InvalidIntent("invalid request body"))
			c.JSON(StatusFor(resp), resp)
			return
		}
		resp := h.Handle(c.Request.Context(), req)
		c.JSON(StatusFor(resp), resp)
	})

	return r
}

func accessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
