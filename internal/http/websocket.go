package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	applog "carteira/internal/log"
	"carteira/internal/services"
)

const wsWriteTimeout = 5 * time.Second

// Update is pushed to websocket clients after every ledger change, and once
// on connect.
type Update struct {
	Kind     services.EventKind `json:"kind"`
	Revision uint64             `json:"revision"`
	Metrics  metricsResponse    `json:"metrics"`
}

// Hub streams fresh metrics to connected browsers whenever the ledger
// commits a mutation.
type Hub struct {
	ledger  *services.Ledger
	now     func() time.Time
	origins []string
	logger  *applog.Logger

	clients   atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(ledger *services.Ledger, now func() time.Time, origins []string, logger *applog.Logger) *Hub {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Hub{
		ledger:  ledger,
		now:     now,
		origins: originPatterns(origins),
		logger:  logger.WithComponent(applog.ComponentWebsocket),
		done:    make(chan struct{}),
	}
}

// originPatterns turns CORS origins such as "https://app.example" into the
// host patterns the websocket handshake matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if !strings.Contains(o, "://") {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}
	return out
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// Run blocks until ctx is done and then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-h.done:
	}
	h.Close()
	return nil
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", applog.FieldError, err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	h.clients.Add(1)
	defer h.clients.Add(-1)

	events, cancel := h.ledger.Subscribe()
	defer cancel()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	if err := h.push(ctx, conn, services.Event{Kind: services.EventTransactions, Revision: h.ledger.Revision()}); err != nil {
		h.logClose(ctx, err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "ledger closed")
				return
			}
			if err := h.push(ctx, conn, ev); err != nil {
				h.logClose(ctx, err)
				return
			}
		}
	}
}

func (h *Hub) push(ctx context.Context, conn *websocket.Conn, ev services.Event) error {
	snap, err := h.ledger.Snapshot(ctx, h.now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, Update{Kind: ev.Kind, Revision: ev.Revision, Metrics: newMetricsResponse(snap)})
}

func (h *Hub) logClose(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
		return
	}
	h.logger.WarnContext(ctx, "Websocket push failed", applog.FieldError, err)
}
