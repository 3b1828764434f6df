package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cosmotablas-service/internal/app"
	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/wire"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 5 * time.Second

// WSHandler streams live best-per-player boards of one table.
type WSHandler struct {
	gateway  *app.GatewayService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(gateway *app.GatewayService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		gateway: gateway,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type boardPayload struct {
	Table     int           `json:"table"`
	Records   []wire.Record `json:"records"`
	UpdatedAt int64         `json:"updated_at"`
}

// ServeWS upgrades GET /ws/leaderboard?table=N and pushes the table's board
// on connect and after every accepted record.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(r.URL.Query().Get("table"))
	if err != nil || !domain.IsStandardTable(table) {
		writeError(w, http.StatusBadRequest, "Invalid table number")
		return
	}

	updates, cancel, err := h.gateway.Subscribe(r.Context(), table)
	if err != nil {
		h.logger.Error("ws_subscribe_failed", "table", table, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws_upgrade_failed", "err", err)
		return
	}
	defer conn.Close()

	// The client never sends anything meaningful; reading only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case board, ok := <-updates:
			if !ok {
				return
			}
			msg := outboundMessage[boardPayload]{Type: "leaderboard", Payload: boardPayload{
				Table:     board.TableNumber,
				Records:   wire.FromRecords(board.Records),
				UpdatedAt: board.UpdatedAt.UnixMilli(),
			}}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws_write_failed", "table", table, "err", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
