package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const pingInterval = 30 * time.Second

// client is one live connection plus the identity it authenticated as
// (by room code and team name; there is no account system). Identity
// fields are guarded by the gateway's lock, never touched by rooms.
type client struct {
	id      string
	session NetworkSession
	outbox  chan []byte
	limiter *rate.Limiter

	// set under Gateway.mu
	roomID   string
	teamName string
	isHost   bool
}

func newClient(session NetworkSession) *client {
	return &client{
		id:      uuid.NewString(),
		session: session,
		outbox:  make(chan []byte, 64),
		limiter: rate.NewLimiter(1, 5),
	}
}

// send queues data for the write pump. Delivery is best effort: a slow
// or dead client drops messages rather than stalling the room.
func (c *client) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
	}
}

func (c *client) readPump(gw *Gateway) {
	defer gw.disconnect(c)

	for {
		data, err := c.session.Read()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			continue
		}

		var packet clientPacket
		if err := json.Unmarshal(data, &packet); err != nil {
			gw.sendTo(c, newErrorMsg("Invalid message"))
			continue
		}
		gw.dispatch(c, packet)
	}
}

func (c *client) writePump() {
	pings := time.NewTicker(pingInterval)
	defer pings.Stop()
	defer c.session.Close("")

	for {
		select {
		case data, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.session.Write(data); err != nil {
				return
			}
		case <-pings.C:
			if err := c.session.Ping(); err != nil {
				return
			}
		}
	}
}
