package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danphilibin/relay/pkg/log"
)

const ndjsonContentType = "application/x-ndjson"

// streamRun writes the run's log as NDJSON, one message per line: every
// persisted message first, then live appends until the client disconnects
func (s *Server) streamRun(c *gin.Context) {
	runID, ok := s.runParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, err := s.hub.Subscribe(ctx, runID)
	if err != nil {
		failWith(c, ErrReadMessages, err)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", ndjsonContentType)
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	enc := json.NewEncoder(c.Writer)
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if err := enc.Encode(msg); err != nil {
			slog.Debug("Stream client gone",
				log.RunID(runID),
				log.Error(err))
			return
		}
		c.Writer.Flush()
	}
}
