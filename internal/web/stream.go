package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// terminalEvents end a stream: a planning run finished one way or the other.
var terminalEvents = map[string]bool{
	"plan_generated": true,
	"plan_corrected": true,
	"plan_failed":    true,
	"reset":          true,
}

// handleEventStream serves a Server-Sent Events stream of the session's
// planning events. It polls the event log, sends each new event as one SSE
// message and sends a "done" event after a run finishes. Events already
// logged before the request are skipped unless ?from=start is given.
func (s *Server) handleEventStream(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var lastID int
	if c.QueryParam("from") != "start" {
		latest, err := s.orch.Events(ctx, id, 1)
		if err != nil {
			return err
		}
		if len(latest) > 0 {
			lastID = latest[0].ID
		}
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if present
	w.WriteHeader(http.StatusOK)
	w.Flush()

	sendDone := func(reason string) {
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", reason)
		w.Flush()
	}

	tick := time.NewTicker(s.poll)
	defer tick.Stop()

	for {
		events, err := s.orch.Events(ctx, id, 0)
		if err != nil {
			sendDone("event log unavailable")
			return nil
		}
		// newest first; replay oldest first
		for i := len(events) - 1; i >= 0; i-- {
			e := events[i]
			if e.ID <= lastID {
				continue
			}
			lastID = e.ID
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Event, data)
			w.Flush()
			if terminalEvents[e.Event] {
				sendDone(e.Event)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}
