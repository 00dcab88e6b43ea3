package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/httpx"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/view"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 4096
	wsSendBuffer = 16
)

type wsMessage struct {
	Type    string `json:"type"`
	View    string `json:"view,omitempty"`
	Version uint64 `json:"version,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// wsCommand is sent by a bookings view client to confirm or cancel a row.
type wsCommand struct {
	Action string `json:"action"`
	ID     int64  `json:"id"`
}

// liveView is an active view of any snapshot type.
type liveView struct {
	name     string
	changed  <-chan struct{}
	snapshot func() (any, uint64)
	close    func()
	bookings *view.BookingList
}

func fromLive[T any](name string, l *view.Live[T]) *liveView {
	return &liveView{
		name:    name,
		changed: l.Changed(),
		snapshot: func() (any, uint64) {
			v, ver := l.Snapshot()
			return v, ver
		},
		close: l.Close,
	}
}

// openView activates the view named in the query string.
func (s *Server) openView(ctx context.Context, r *http.Request) (*liveView, error) {
	q := r.URL.Query()
	switch name := q.Get("view"); name {
	case "grid":
		venueName, courtType, date, err := s.gridParams(r)
		if err != nil {
			return nil, err
		}
		fetch := func(ctx context.Context) (any, error) {
			return s.svc.Availability.Grid(ctx, venueName, courtType, date)
		}
		l, err := view.Activate(ctx, s.hub, name, fetch, s.log,
			model.Slot{}.TableName(), model.Booking{}.TableName())
		if err != nil {
			return nil, err
		}
		return fromLive(name, l), nil

	case "alerts":
		aq, err := alertQuery(q)
		if err != nil {
			return nil, err
		}
		fetch := func(ctx context.Context) (any, error) {
			return s.svc.Alerts.List(ctx, aq)
		}
		l, err := view.Activate(ctx, s.hub, name, fetch, s.log,
			model.Alert{}.TableName(), model.Client{}.TableName(), model.Booking{}.TableName())
		if err != nil {
			return nil, err
		}
		return fromLive(name, l), nil

	case "bookings":
		f, err := bookingFilter(q)
		if err != nil {
			return nil, err
		}
		page, size, err := pageParams(q)
		if err != nil {
			return nil, err
		}
		list, err := view.OpenBookingList(ctx, s.hub, s.svc.Bookings, f, page, size, s.log)
		if err != nil {
			return nil, err
		}
		lv := fromLive(name, list.Live)
		lv.bookings = list
		return lv, nil

	case "dashboard":
		from, to, err := s.dateRange(q)
		if err != nil {
			return nil, err
		}
		fetch := func(ctx context.Context) (any, error) {
			return s.svc.Dashboard.Summary(ctx, from, to)
		}
		l, err := view.Activate(ctx, s.hub, name, fetch, s.log,
			model.Booking{}.TableName(), model.Slot{}.TableName(),
			model.Alert{}.TableName(), model.Message{}.TableName())
		if err != nil {
			return nil, err
		}
		return fromLive(name, l), nil

	default:
		return nil, badParam("view", "usa grid, alerts, bookings o dashboard")
	}
}

// handleLiveView streams a view's snapshots over a WebSocket. The full
// snapshot is sent on connect and after every change.
func (s *Server) handleLiveView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	if s.limiter != nil && !s.limiter.allow(clientKey(r)) {
		httpx.WriteError(w, http.StatusTooManyRequests, "Demasiadas solicitudes, intenta en unos segundos")
		return
	}

	lv, err := s.openView(ctx, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer lv.close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsConn{conn: conn, send: make(chan wsMessage, wsSendBuffer)}
	go c.writePump(ctx, cancel)
	go c.readPump(ctx, cancel, s, lv)

	push := func() {
		data, version := lv.snapshot()
		c.enqueue(ctx, wsMessage{Type: "snapshot", View: lv.name, Version: version, Data: data})
	}
	push()
	for {
		select {
		case <-ctx.Done():
			return
		case <-lv.changed:
			push()
		}
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan wsMessage
}

func (c *wsConn) enqueue(ctx context.Context, m wsMessage) {
	select {
	case c.send <- m:
	case <-ctx.Done():
	}
}

func (c *wsConn) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case m := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) readPump(ctx context.Context, cancel context.CancelFunc, s *Server, lv *liveView) {
	defer cancel()
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd wsCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			return
		}
		if lv.bookings == nil {
			c.enqueue(ctx, wsMessage{Type: "error", Message: "esta vista no acepta comandos"})
			continue
		}

		var err error
		switch cmd.Action {
		case "confirm":
			err = lv.bookings.Confirm(ctx, cmd.ID)
		case "cancel":
			err = lv.bookings.Cancel(ctx, cmd.ID)
		default:
			c.enqueue(ctx, wsMessage{Type: "error", Message: "acción desconocida"})
			continue
		}
		if err != nil {
			s.log.Info("live view command failed", zap.String("action", cmd.Action), zap.Int64("id", cmd.ID), zap.Error(err))
			c.enqueue(ctx, wsMessage{Type: "error", Message: publicMessage(err)})
			continue
		}
		c.enqueue(ctx, wsMessage{Type: "ok", Message: cmd.Action})
	}
}
