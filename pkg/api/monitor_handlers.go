package api

import (
	"errors"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-handtrack/pipeline/pkg/log"
)

// SnapshotFunc supplies the current scene snapshot pushed to monitors.
type SnapshotFunc func() interface{}

// RegisterMonitorRoute exposes a websocket endpoint that streams scene
// snapshots to browser monitors at the given interval. Monitors are
// read-only consumers; a slow or closed monitor only loses its own feed.
func RegisterMonitorRoute(app *fiber.App, logger customlog.Logger, snapshotFn SnapshotFunc, interval time.Duration) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/monitor", websocket.New(func(conn *websocket.Conn) {
		MonitorWebSocketHandler(conn, logger, snapshotFn, interval)
	}))
}

// MonitorWebSocketHandler pushes snapshots until the client goes away.
func MonitorWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, snapshotFn SnapshotFunc, interval time.Duration) {
	logger.Infof("Monitor WebSocket connected: %s", conn.RemoteAddr())
	defer logger.Infof("Monitor WebSocket disconnected: %s", conn.RemoteAddr())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Errorf("Monitor WS read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			snapshot := snapshotFn()
			if snapshot == nil {
				continue
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				if !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
					logger.Infof("Monitor WS write failed: %v", err)
				}
				return
			}
		}
	}
}
