package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/services"
	"yeardash/internal/session"
	"yeardash/internal/store"
	"yeardash/internal/subscriber"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sessionCheckPeriod = 30 * time.Second
)

// CollectionMessage is pushed on every collection snapshot.
type CollectionMessage struct {
	Items   any    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// latest keeps only the newest value; a slow socket skips stale states.
type latest[T any] chan T

func (l latest[T]) put(v T) {
	select {
	case <-l:
	default:
	}
	l <- v
}

// handleDashboardSocket streams the live dashboard of the caller.
func (s *Server) handleDashboardSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Websocket upgrade failed", log.FieldError, err)
		return
	}

	ctx, cancel := s.openSocket(r, conn)
	defer cancel()

	holder := session.New(nil)
	holder.SetIdentity(id)

	out := make(latest[services.DashboardState], 1)
	watcher := s.dashboard.Watch(ctx, holder, out.put)
	defer watcher.Stop()

	pump(ctx, conn, out)
}

// handleCollectionSocket streams one collection of the caller. Goals accept
// ?year= to follow a single year.
func (s *Server) handleCollectionSocket(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionOf(w, r)
	if !ok {
		return
	}
	id, ok := s.identity(r)
	if !ok {
		UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
		return
	}

	var cs store.Constraints
	if collection == core.CollectionGoals && r.URL.Query().Has("year") {
		year, err := ParseYearParam(r.URL.Query(), s.now())
		if err != nil {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
		cs = store.Constraints{store.Where("year", store.OpEq, year)}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Websocket upgrade failed", log.FieldError, err)
		return
	}

	ctx, cancel := s.openSocket(r, conn)
	defer cancel()

	out := make(latest[CollectionMessage], 1)
	switch collection {
	case core.CollectionGoals:
		defer follow(ctx, s.sub, id, collection, cs, core.DecodeGoal, aggregate.SortGoalsByCreated, out).Stop()
	case core.CollectionTransactions:
		defer follow(ctx, s.sub, id, collection, cs, core.DecodeTransaction, aggregate.SortTransactions, out).Stop()
	case core.CollectionRecaps:
		defer follow(ctx, s.sub, id, collection, cs, core.DecodeRecap, aggregate.SortRecaps, out).Stop()
	}

	pump(ctx, conn, out)
}

// follow subscribes to collection and forwards sorted snapshots to out.
func follow[T any](ctx context.Context, sub *subscriber.Subscriber, id *core.Identity, collection string, cs store.Constraints, decode func(core.Document) T, sort func([]T) []T, out latest[CollectionMessage]) *subscriber.Subscription[T] {
	return subscriber.Subscribe(ctx, sub, subscriber.Request[T]{
		Identity:    id,
		Collection:  collection,
		Constraints: cs,
		Decode:      decode,
		OnChange: func(st subscriber.State[T]) {
			msg := CollectionMessage{Items: sort(st.Items), Loading: st.Loading}
			if st.Err != nil {
				msg.Error = st.Err.Error()
			}
			out.put(msg)
		},
	})
}

// openSocket registers the connection and starts its reader. The returned
// context ends when the client goes away or the request is cancelled.
func (s *Server) openSocket(r *http.Request, conn *websocket.Conn) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	s.metrics.WebsocketOpened()
	log.FromContext(ctx).DebugContext(ctx, "Websocket opened", log.FieldPath, r.URL.Path)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if token := requestToken(r); token != "" && s.deps.Tokens != nil {
		go s.watchSession(ctx, cancel, conn, token)
	}

	return ctx, func() {
		cancel()
		_ = conn.Close()
		s.metrics.WebsocketClosed()
		log.FromContext(ctx).DebugContext(ctx, "Websocket closed", log.FieldPath, r.URL.Path)
	}
}

// watchSession closes the socket once token stops being valid, which is
// how a sign out or an expiry reaches an open stream.
func (s *Server) watchSession(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, token string) {
	ticker := time.NewTicker(s.sessionCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.deps.Tokens.Parse(ctx, token); err != nil {
				log.FromContext(ctx).InfoContext(ctx, "Websocket session ended", log.FieldError, err)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"), time.Now().Add(writeWait))
				cancel()
				return
			}
		}
	}
}

// pump writes every value from out until ctx ends or a write fails.
func pump[T any](ctx context.Context, conn *websocket.Conn, out latest[T]) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case v := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				log.FromContext(ctx).DebugContext(ctx, "Websocket write failed", log.FieldError, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
