package coordinator

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/models"
)

// Client is the dial side of the fabric, used by foreground agents to reach
// the daemon's hub. All sends are best-effort.
type Client struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	onMsg   func(models.Message)
	closed  bool
	closeCh chan struct{}
}

// Dial connects to the hub at hubAddr (host:port).
func Dial(hubAddr string, onMessage func(models.Message)) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: hubAddr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}

	c := &Client{
		conn:    conn,
		onMsg:   onMessage,
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send broadcasts a message through the hub. Errors are logged, not
// returned; cross-context delivery is best-effort by design.
func (c *Client) Send(msg models.Message) {
	data, err := msg.Encode()
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Debug("hub send failed", map[string]interface{}{"type": msg.Type, "error": err.Error()})
	}
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := models.DecodeMessage(data)
		if err != nil {
			continue
		}
		if c.onMsg != nil {
			c.onMsg(msg)
		}
	}
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)
	return c.conn.Close()
}

// Done is closed once the connection drops.
func (c *Client) Done() <-chan struct{} {
	return c.closeCh
}
