package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"trustrent/core/types"
	"trustrent/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// handleEventsWS streams journal entries after ?cursor= followed by live
// entries as they commit.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(s.clientSource(r), s.now()) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

// streamEvents writes every entry after cursor in sequence order. When the
// node drops the subscription for falling behind, the stream resubscribes
// after the last written sequence and replays the missed entries from the
// journal.
func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64) error {
	last := cursor
	for {
		resume, err := s.streamFrom(ctx, conn, &last)
		if err != nil || !resume {
			return err
		}
		s.logger.Debug("event stream resubscribing", slog.Uint64("after", last))
	}
}

// streamFrom serves one subscription. It reports resume=true when the node
// closed the subscription while ctx is still live.
func (s *Server) streamFrom(ctx context.Context, conn *websocket.Conn, last *uint64) (bool, error) {
	entries, cancel, backlog, err := s.node.EventsSubscribe(ctx, *last)
	if err != nil {
		return false, err
	}
	defer cancel()

	for _, entry := range backlog {
		if err := writeJournalEntry(ctx, conn, entry); err != nil {
			return false, err
		}
		*last = entry.Sequence
	}
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				return ctx.Err() == nil, ctx.Err()
			}
			if entry.Sequence <= *last {
				continue
			}
			if err := writeJournalEntry(ctx, conn, entry); err != nil {
				return false, err
			}
			*last = entry.Sequence
		}
	}
}

func writeJournalEntry(ctx context.Context, conn *websocket.Conn, entry types.JournalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
