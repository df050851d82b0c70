package game

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout  = 20 * time.Second
	readDeadline  = time.Minute
	maxPacketSize = 4 * 1024
)

type websocketConnection struct {
	socket *websocket.Conn
}

func newWebsocketConnection(conn *websocket.Conn) *websocketConnection {
	conn.SetReadLimit(maxPacketSize)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	return &websocketConnection{socket: conn}
}

func (wc *websocketConnection) Write(data []byte) error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

// Close may run on any goroutine, including while the write pump is
// mid-write, so the close frame goes out via WriteControl, which gorilla
// allows concurrently with other writes.
func (wc *websocketConnection) Close(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	wc.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	wc.socket.Close()
}
