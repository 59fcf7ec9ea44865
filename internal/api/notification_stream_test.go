package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIPA-VN/uxone-sub003/internal/auth"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/notifications"
)

func streamServer(t *testing.T) (*httptest.Server, *notifications.Registry, *auth.JWTManager) {
	t.Helper()
	jwtManager := auth.NewJWTManager("stream-secret", "uxone", time.Hour)
	registry := notifications.NewRegistry()
	r := NewRouter(&fakePipeline{}, WithStream(jwtManager, registry))
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	return srv, registry, jwtManager
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + PathNotificationStream + query
}

func TestNotificationStream_DeliversUserEvents(t *testing.T) {
	srv, registry, jwtManager := streamServer(t)
	token, err := jwtManager.GenerateToken(7, "manager@example.com", models.RoleManager)
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var hello streamHello
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, EventConnected, hello.Type)
	assert.Equal(t, int64(7), hello.UserID)

	assert.Equal(t, 0, registry.Publish(8, notifications.Event{Type: notifications.EventNotification}))
	delivered := registry.Publish(7, notifications.Event{
		Type:         notifications.EventNotification,
		Notification: models.Notification{UserID: 7, Title: "New ticket", Type: models.NotificationTicketCreated},
	})
	assert.Equal(t, 1, delivered)

	var ev notifications.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notifications.EventNotification, ev.Type)
	assert.Equal(t, "New ticket", ev.Notification.Title)
}

func TestNotificationStream_BearerHeader(t *testing.T) {
	srv, registry, jwtManager := streamServer(t)
	token, err := jwtManager.GenerateToken(3, "a@example.com", models.RoleAdmin)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var hello streamHello
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, 1, registry.Subscribers())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return registry.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationStream_RejectsBadTokens(t *testing.T) {
	srv, registry, _ := streamServer(t)
	other := auth.NewJWTManager("another-secret", "uxone", time.Hour)
	forged, err := other.GenerateToken(7, "x@example.com", models.RoleAdmin)
	require.NoError(t, err)

	for name, query := range map[string]string{"missing": "", "forged": "?token=" + forged, "garbage": "?token=abc"} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, query), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Zero(t, registry.Subscribers())
		})
	}
}
