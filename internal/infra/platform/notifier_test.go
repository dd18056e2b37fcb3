package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type platformStub struct {
	mu       sync.Mutex
	received []Notification
	auth     []string
	conns    []*websocket.Conn
}

func (s *platformStub) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		s.mu.Lock()
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.conns = append(s.conns, ws)
		s.mu.Unlock()

		for {
			var n Notification
			if err := ws.ReadJSON(&n); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, n)
			s.mu.Unlock()
		}
	}
}

func (s *platformStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestNotifier_Notify(t *testing.T) {
	stub := &platformStub{}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	notifier := NewNotifier("ws"+strings.TrimPrefix(server.URL, "http"), "bridge-token")
	defer notifier.Close()

	ctx := context.Background()
	require.NoError(t, notifier.Notify(ctx, &Notification{Type: "NOTIFICATION", Key: "follow", ToUser: "u1", Value: 4}))
	require.NoError(t, notifier.Notify(ctx, &Notification{Type: "NOTIFICATION", Key: "unfollow", ToUser: "u1", Value: 1}))

	require.Eventually(t, func() bool { return stub.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Equal(t, []string{"bridge-token"}, stub.auth, "one connection is reused")
	assert.Equal(t, "follow", stub.received[0].Key)
	assert.Equal(t, "u1", stub.received[1].ToUser)
}

func (p *Notifier) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

func TestNotifier_RedialsAfterPeerCloses(t *testing.T) {
	stub := &platformStub{}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	notifier := NewNotifier("ws"+strings.TrimPrefix(server.URL, "http"), "bridge-token")
	defer notifier.Close()

	ctx := context.Background()
	require.NoError(t, notifier.Notify(ctx, &Notification{Type: "NOTIFICATION", Key: "follow"}))
	require.Eventually(t, func() bool { return stub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	stub.mu.Lock()
	stub.conns[0].Close()
	stub.mu.Unlock()

	require.Eventually(t, func() bool { return !notifier.connected() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, notifier.Notify(ctx, &Notification{Type: "NOTIFICATION", Key: "unfollow"}))
	require.Eventually(t, func() bool { return stub.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Len(t, stub.auth, 2)
	assert.Equal(t, "unfollow", stub.received[1].Key)
}

func TestNotifier_PingsKeepIdleConnection(t *testing.T) {
	stub := &platformStub{}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	notifier := NewNotifier("ws"+strings.TrimPrefix(server.URL, "http"), "")
	notifier.pongWait = 80 * time.Millisecond
	notifier.pingInterval = 20 * time.Millisecond
	defer notifier.Close()

	ctx := context.Background()
	require.NoError(t, notifier.Notify(ctx, &Notification{Type: "NOTIFICATION", Key: "follow"}))

	// Idle for several read deadlines; pongs keep extending them
	time.Sleep(300 * time.Millisecond)
	assert.True(t, notifier.connected())

	require.NoError(t, notifier.Notify(ctx, &Notification{Type: "NOTIFICATION", Key: "unfollow"}))
	require.Eventually(t, func() bool { return stub.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Len(t, stub.auth, 1, "the idle connection stayed up")
}

func TestNotifier_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	notifier := NewNotifier("ws"+strings.TrimPrefix(server.URL, "http"), "")
	err := notifier.Notify(context.Background(), &Notification{Type: "NOTIFICATION"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestNotifier_CloseWithoutConnection(t *testing.T) {
	notifier := NewNotifier("ws://127.0.0.1:1/unused", "")
	assert.NoError(t, notifier.Close())
}
