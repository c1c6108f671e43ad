package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/resident-payments/events"
)

func openStream(t *testing.T, srv *httptest.Server, token string) (*bufio.Reader, func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/notifications/stream?access_token="+token, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return bufio.NewReader(resp.Body), func() {
		cancel()
		resp.Body.Close()
	}
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\n")
}

func TestStreamNotifications_PushesNewNotifications(t *testing.T) {
	// GIVEN: Alice has the live stream open
	env := setupTestHandler(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	stream, closeStream := openStream(t, srv, env.token(t, demoAlice))
	defer closeStream()
	require.Equal(t, ": connected", readLine(t, stream))

	// WHEN: her maintenance ticket moves
	err := env.disp.Publish(context.Background(), events.MaintenanceUpdated{
		ID:           "mnt-1:in_progress",
		RequestRef:   "mnt-1",
		RequesterRef: demoAlice.ID,
		Status:       "IN_PROGRESS",
	})
	require.NoError(t, err)

	// THEN: the notification arrives as an SSE frame
	var id, data string
	for data == "" {
		line := readLine(t, stream)
		switch {
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	var n NotificationDTO
	require.NoError(t, json.Unmarshal([]byte(data), &n))
	assert.Equal(t, id, n.ID)
	assert.Equal(t, "maintenance", n.Type)
	assert.Equal(t, "Maintenance request updated", n.Title)
	assert.False(t, n.IsRead)

	// And it is the same record the inbox holds.
	p := decode[NotificationPageDTO](t, env.do(t, &demoAlice, http.MethodGet, "/api/notifications", nil))
	require.Len(t, p.Items, 1)
	assert.Equal(t, n.ID, p.Items[0].ID)
}

func TestStreamNotifications_RequiresToken(t *testing.T) {
	env := setupTestHandler(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/notifications/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamNotifications_SubscriptionReleasedOnDisconnect(t *testing.T) {
	env := setupTestHandler(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	stream, closeStream := openStream(t, srv, env.token(t, demoBob))
	require.Equal(t, ": connected", readLine(t, stream))
	assert.Equal(t, 1, env.h.Hub.Connected(demoBob.ID))

	closeStream()
	assert.Eventually(t, func() bool {
		return env.h.Hub.Connected(demoBob.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
