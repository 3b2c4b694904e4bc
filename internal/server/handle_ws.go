package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleRoomSocket streams room events over a WebSocket. Client frames are
// ignored; the connection only carries server events.
func handleRoomSocket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := openStream(w, r, deps)
		if !ok {
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			deps.Broker.Unsubscribe(st.sub)
			loggerFrom(r).Error("websocket accept failed", "error", err)
			return
		}
		defer st.close(r, deps)
		defer conn.CloseNow()

		ctx := conn.CloseRead(r.Context())
		logger := loggerFrom(r).With("room_id", st.room.ID, "user_id", st.caller.UserID)

		snap, err := st.snapshot(ctx, deps)
		if err != nil {
			logger.Error("building room snapshot failed", "error", err)
			conn.Close(websocket.StatusInternalError, "snapshot failed")
			return
		}
		if err := write(ctx, conn, snap); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}

		st.online(r, deps)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket closed by client")
				return
			case <-deps.closing:
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			case data, ok := <-st.sub.C:
				if !ok {
					conn.Close(websocket.StatusPolicyViolation, "subscriber fell behind")
					return
				}
				if err := write(ctx, conn, data); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			case <-ping.C:
				pctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					logger.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
