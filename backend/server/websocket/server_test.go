package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adwski/interest-chat/backend/model"
	"github.com/adwski/interest-chat/backend/service"
	_switch "github.com/adwski/interest-chat/backend/switch"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, allowedOrigin string) (*httptest.Server, *service.Service) {
	t.Helper()
	logger := zerolog.Nop()
	svc := service.NewService(service.Config{
		Switch: _switch.NewSwitch(&logger),
		Logger: &logger,
	})
	srv := NewServer(Config{
		Logger:         &logger,
		SessionService: svc,
		AllowedOrigin:  allowedOrigin,
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, svc
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, model.EventConnected, read(t, conn).Event)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func write(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func TestServer_ChatSession(t *testing.T) {
	ts, svc := newTestServer(t, "*")
	c1, c2 := dial(t, ts), dial(t, ts)

	write(t, c1, model.EventFindPartner, model.FindPartnerPayload{Interests: []string{"music", "film"}})
	assert.Equal(t, model.EventWaiting, read(t, c1).Event)

	write(t, c2, model.EventFindPartner, model.FindPartnerPayload{Interests: []string{"film", "sports"}})
	m1, m2 := read(t, c1), read(t, c2)
	require.Equal(t, model.EventMatched, m1.Event)
	require.Equal(t, model.EventMatched, m2.Event)
	assert.JSONEq(t, string(m1.Data), string(m2.Data))

	var matched model.MatchedPayload
	require.NoError(t, json.Unmarshal(m1.Data, &matched))
	assert.Equal(t, []string{"film"}, matched.Common)

	write(t, c1, model.EventTyping, model.RoomPayload{Room: matched.Room})
	assert.Equal(t, model.EventTyping, read(t, c2).Event)

	write(t, c1, model.EventMessage, model.MessagePayload{Room: matched.Room, Message: "<b>hi</b>"})
	got := read(t, c2)
	require.Equal(t, model.EventNewMessage, got.Event)
	assert.JSONEq(t, `{"message":"&lt;b&gt;hi&lt;/b&gt;"}`, string(got.Data))

	require.NoError(t, c1.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Equal(t, model.EventPartnerLeft, read(t, c2).Event)

	assert.Eventually(t, func() bool {
		return svc.Stats() == service.Stats{Connections: 1}
	}, 3*time.Second, 20*time.Millisecond)
}

func TestServer_GarbageFramesAreIgnored(t *testing.T) {
	ts, _ := newTestServer(t, "*")
	c1 := dial(t, ts)

	require.NoError(t, c1.WriteMessage(websocket.TextMessage, []byte("not json")))
	write(t, c1, model.EventMessage, model.MessagePayload{Room: "", Message: "hi"})
	write(t, c1, model.EventFindPartner, model.FindPartnerPayload{Interests: []string{"go"}})

	assert.Equal(t, model.EventWaiting, read(t, c1).Event, "connection must survive garbage frames")
}

func TestServer_OriginCheck(t *testing.T) {
	ts, _ := newTestServer(t, "http://localhost:3000")
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}
