package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
)

// Conn is the shard's view of an established gateway socket. Only the shard
// that owns it may write.
type Conn interface {
	// Write sends a single text frame.
	Write(ctx context.Context, data []byte) error
	// Close sends a close frame with the given code and tears the socket
	// down.
	Close(code int, reason string) error
}

// ConnHandler receives transport signals. Raw frames and close
// notifications are delivered from a single goroutine in receive order.
type ConnHandler interface {
	OnMessage(binary bool, data []byte)
	OnClose(code int, reason string)
	OnError(err error)
}

// Dialer opens a gateway socket, returning once the connection is
// established. Signals are pumped into handler until the socket dies.
type Dialer func(ctx context.Context, url string, handler ConnHandler) (Conn, error)

// WebSocketDialer returns the default Dialer backed by gorilla/websocket.
// A nil dialer uses websocket.DefaultDialer.
func WebSocketDialer(dialer *websocket.Dialer) Dialer {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return func(ctx context.Context, url string, handler ConnHandler) (Conn, error) {
		headers := http.Header{}
		headers.Add("accept-encoding", "zlib")
		conn, _, err := dialer.DialContext(ctx, url, headers)
		if err != nil {
			return nil, err
		}
		ws := &wsConn{conn: conn}
		go ws.readLoop(handler)
		return ws, nil
	}
}

type wsConn struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(code int, reason string) error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) readLoop(handler ConnHandler) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				handler.OnClose(closeErr.Code, closeErr.Text)
			} else {
				handler.OnError(err)
				handler.OnClose(0, err.Error())
			}
			return
		}
		handler.OnMessage(messageType == websocket.BinaryMessage, data)
	}
}

// decompress inflates a binary frame with the configured hook. A frame
// that cannot be inflated is dropped by the caller.
func (s *Shard) decompress(data []byte) ([]byte, error) {
	if s.config.Decompress == nil {
		return nil, errors.New("gateway: received binary frame without a decompressor")
	}
	return s.config.Decompress(data)
}

// zlibDecompress inflates a compressed payload into its text form. It is
// the default Decompress hook when compression is enabled.
func zlibDecompress(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
