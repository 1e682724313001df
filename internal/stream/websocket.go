package stream

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinicops/trainingdesk/internal/models"
)

// WebSocketDialer subscribes to {BaseURL}/ws/mytrainingrooms/{roomId}/.
type WebSocketDialer struct {
	BaseURL string
	Token   string
	Dialer  *websocket.Dialer
}

// NewWebSocketDialer creates a dialer with a bounded handshake.
func NewWebSocketDialer(baseURL, token string) *WebSocketDialer {
	return &WebSocketDialer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// URL returns the subscription URL for a room.
func (d *WebSocketDialer) URL(roomID models.RoomID) string {
	return d.BaseURL + "/ws/mytrainingrooms/" + string(roomID) + "/"
}

// Dial completes the handshake for roomID.
func (d *WebSocketDialer) Dial(ctx context.Context, roomID models.RoomID) (Conn, error) {
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	conn, resp, err := d.Dialer.DialContext(ctx, d.URL(roomID), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

// ReadMessage returns the next data frame. Control frames are handled by gorilla.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
