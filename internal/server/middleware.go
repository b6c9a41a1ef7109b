package server

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/brd-breakdown/internal/common"
)

const headerRequestID = "X-Request-ID"

// requestContext assigns a request id (the caller's X-Request-ID when present),
// echoes it back, and stores it with a request-scoped logger on the context.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		reqID := strings.TrimSpace(req.Header.Get(headerRequestID))
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Response().Header().Set(headerRequestID, reqID)

		log := s.logger.With("req_id", reqID)
		ctx := common.WithRequestID(req.Context(), reqID)
		ctx = common.WithLogger(ctx, log)
		c.SetRequest(req.WithContext(ctx))

		if err := next(c); err != nil {
			c.Error(err)
		}

		log.Debug("http.request",
			"method", req.Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"bytes", c.Response().Size,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}
}
