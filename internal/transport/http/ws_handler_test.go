package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketBoardFeed(t *testing.T) {
	srv := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leaderboard?table=6"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readBoard(t, conn)
	assert.Equal(t, 6, initial.Payload.Table)
	assert.Empty(t, initial.Payload.Records)

	resp := do(t, srv, http.MethodPost, "/records", `{"userId":"u1","userName":"Ana","tableNumber":6,"timeMs":7000,"errors":0,"points":7}`)
	require.Equal(t, http.StatusCreated, resp.code)

	update := readBoard(t, conn)
	assert.Equal(t, "leaderboard", update.Type)
	require.Len(t, update.Payload.Records, 1)
	assert.Equal(t, "u1", update.Payload.Records[0].UserID)
	assert.Equal(t, 7, update.Payload.Records[0].Points)
}

func TestWebSocketRejectsBadTable(t *testing.T) {
	srv := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leaderboard?table=99"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func readBoard(t *testing.T, conn *websocket.Conn) outboundMessage[boardPayload] {
	t.Helper()
	var msg outboundMessage[boardPayload]
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}
