package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/browse"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/middleware"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/internal/result"
	"github.com/AnshRaj112/thriftit-backend/internal/services"
)

const (
	feedReadLimit    = 16 * 1024
	feedPongWait     = 90 * time.Second
	feedPingInterval = 30 * time.Second
	feedWriteWait    = 10 * time.Second
)

// feedMessage is sent by the client to replace the feed's query.
type feedMessage struct {
	Type        string   `json:"type"` // "filter" or "ping"
	Q           string   `json:"q"`
	Category    string   `json:"category"`
	MinPrice    *float64 `json:"min_price"`
	MaxPrice    *float64 `json:"max_price"`
	MaxDistance *float64 `json:"max_distance"`
	Sort        string   `json:"sort"`
}

func (m feedMessage) query() (browse.Query, error) {
	q := browse.Query{Term: m.Q, Filter: browse.DefaultFilter()}
	if m.Category != "" {
		c, ok := models.LookupCategory(m.Category)
		if !ok {
			return q, errs.Invalid("category", "Invalid category")
		}
		q.Filter.Category = &c
	}
	if m.MinPrice != nil {
		q.Filter.MinPrice = *m.MinPrice
	}
	if m.MaxPrice != nil {
		q.Filter.MaxPrice = *m.MaxPrice
	}
	if q.Filter.MinPrice < 0 || q.Filter.MinPrice > q.Filter.MaxPrice {
		return q, errs.Invalid("max_price", "Maximum price must not be below the minimum")
	}
	q.Filter.MaxDistance = m.MaxDistance
	q.Filter.Sort = browse.ParseSort(m.Sort)
	return q, nil
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin)
		},
	}
}

// ItemFeed streams the viewer's filtered listing over WebSocket. The listing
// is sent on connect, after every cache change and whenever the client posts
// a new filter. Each frame is a result envelope.
func (h *Handler) ItemFeed(w http.ResponseWriter, r *http.Request) {
	q, err := parseBrowseQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	viewerID := middleware.UserID(r.Context())

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	changes, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	queries := make(chan browse.Query, 1)
	go h.readFeed(ctx, cancel, conn, queries)

	send := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
		return conn.WriteJSON(v) == nil
	}
	push := func() bool {
		listing, err := h.items.Browse(ctx, viewerID, q)
		if err != nil {
			return send(result.FailureMessage[services.Listing](err, statusMessages[statusFor(err)]))
		}
		return send(result.Success(listing))
	}

	if !send(result.Loading[services.Listing]()) || !push() {
		return
	}

	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if !push() {
				return
			}
		case q = <-queries:
			if !push() {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readFeed owns the read side of conn. It cancels the session when the
// client goes away.
func (h *Handler) readFeed(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, queries chan browse.Query) {
	defer cancel()
	conn.SetReadLimit(feedReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("item feed closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "filter" {
			continue
		}
		q, err := msg.query()
		if err != nil {
			log.Debug().Err(err).Msg("item feed filter rejected")
			continue
		}
		// keep only the latest filter
		select {
		case <-queries:
		default:
		}
		select {
		case queries <- q:
		case <-ctx.Done():
			return
		}
	}
}
