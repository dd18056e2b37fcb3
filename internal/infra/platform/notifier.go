package platform

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Notification is the frame pushed to the automation platform for one event
type Notification struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	ToUser  string `json:"to_user"`
	Value   any    `json:"value"`
	Content any    `json:"content"`
}

// Notifier keeps one websocket connection to the platform and pushes
// notifications over it, redialing when the connection breaks. A read loop
// and periodic pings notice a dead peer before the next write does.
type Notifier struct {
	endpoint     string
	token        string
	dialer       *websocket.Dialer
	pongWait     time.Duration
	pingInterval time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewNotifier creates a notifier; the connection is opened on first use
func NewNotifier(endpoint, token string) *Notifier {
	return &Notifier{
		endpoint: endpoint,
		token:    token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: writeWait,
		},
		pongWait:     pongWait,
		pingInterval: pingInterval,
	}
}

// Notify sends n, retrying once on a fresh connection if the write fails
func (p *Notifier) Notify(ctx context.Context, n *Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if p.conn == nil {
			conn, err := p.dial(ctx)
			if err != nil {
				return err
			}
			p.conn = conn

			done := make(chan struct{})
			go p.readPump(conn, done)
			go p.pinger(conn, done)
		}

		deadline := time.Now().Add(writeWait)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		p.conn.SetWriteDeadline(deadline)

		if lastErr = p.conn.WriteJSON(n); lastErr == nil {
			return nil
		}
		p.conn.Close()
		p.conn = nil
	}
	return fmt.Errorf("failed to write notification: %w", lastErr)
}

func (p *Notifier) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if p.token != "" {
		header.Set("Authorization", p.token)
	}

	conn, resp, err := p.dialer.DialContext(ctx, p.endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to platform (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to platform: %w", err)
	}
	return conn, nil
}

// readPump discards inbound frames so control frames get handled, and
// forgets the connection once reading fails.
func (p *Notifier) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer p.drop(conn)

	conn.SetReadDeadline(time.Now().Add(p.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(p.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (p *Notifier) pinger(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(p.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// drop closes conn and clears it unless a newer connection replaced it
func (p *Notifier) drop(conn *websocket.Conn) {
	p.mu.Lock()
	if p.conn == conn {
		p.conn = nil
	}
	p.mu.Unlock()
	conn.Close()
}

// Close closes the connection, if any
func (p *Notifier) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := p.conn.Close()
	p.conn = nil
	return err
}
