package game

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Gateway owns the connection↔identity mapping and is the only component
// that touches raw connections. Inbound packets become room commands;
// room events fan back out here. Rooms address recipients purely by room
// code and team name.
type Gateway struct {
	registry *Registry

	mu     sync.RWMutex
	byRoom map[string]map[*client]struct{}

	log zerolog.Logger
}

func NewGateway(registry *Registry, log zerolog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		byRoom:   make(map[string]map[*client]struct{}),
		log:      log.With().Str("component", "gateway").Logger(),
	}
}

// Serve runs the pumps for one accepted connection. Blocks until the
// connection dies.
func (gw *Gateway) Serve(session NetworkSession) {
	c := newClient(session)
	gw.log.Debug().Str("conn", c.id).Msg("client connected")
	go c.writePump()
	c.readPump(gw)
}

// ---- Notifier ----

func (gw *Gateway) Broadcast(roomID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		gw.log.Error().Err(err).Msg("broadcast marshal failed")
		return
	}

	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for c := range gw.byRoom[roomID] {
		c.send(data)
	}
}

func (gw *Gateway) ToHost(roomID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		gw.log.Error().Err(err).Msg("marshal failed")
		return
	}

	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for c := range gw.byRoom[roomID] {
		if c.isHost {
			c.send(data)
		}
	}
}

func (gw *Gateway) ToTeam(roomID, team string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		gw.log.Error().Err(err).Msg("marshal failed")
		return
	}

	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for c := range gw.byRoom[roomID] {
		if !c.isHost && c.teamName == team {
			c.send(data)
		}
	}
}

// ---- inbound routing ----

func (gw *Gateway) dispatch(c *client, packet clientPacket) {
	switch packet.Type {
	case inHostJoin:
		gw.handleHostJoin(c, packet)
	case inTeamJoin:
		gw.handleTeamJoin(c, packet)
	case inGameStart:
		gw.handleGameStart(c, packet)
	case inGuessSubmit:
		gw.handleGuessSubmit(c, packet)
	case inSkipRound:
		gw.withHostRoom(c, func(room *Room) error { return room.SkipRound() })
	case inNextRound:
		gw.withHostRoom(c, func(room *Room) error { return room.NextRound() })
	case inOverrideScore:
		gw.withHostRoom(c, func(room *Room) error {
			return room.OverrideScore(packet.Team, packet.NewScore)
		})
	case inReconnect:
		gw.handleReconnect(c, packet)
	default:
		gw.sendTo(c, newErrorMsg("Invalid message"))
	}
}

func (gw *Gateway) handleHostJoin(c *client, packet clientPacket) {
	room, err := gw.registry.Get(packet.RoomID)
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}

	st, err := room.State()
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}

	gw.rebind(c, packet.RoomID, "", true)
	gw.sendTo(c, newHostJoinedMsg(st.ID, st.Teams, st.Stage))
}

func (gw *Gateway) handleTeamJoin(c *client, packet clientPacket) {
	room, err := gw.registry.Get(packet.RoomID)
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}

	// Bind before joining so the joining client receives the room's
	// team:joined broadcast too.
	gw.bind(c, packet.RoomID, packet.TeamName, false)
	if err := room.JoinTeam(packet.TeamName); err != nil {
		gw.unbind(c)
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}

	gw.sendTo(c, newTeamConfirmedMsg(packet.TeamName, packet.RoomID))
}

func (gw *Gateway) handleGameStart(c *client, packet clientPacket) {
	roomID, isHost := gw.identity(c)
	if !isHost {
		gw.sendTo(c, newErrorMsg("Only host can start game"))
		return
	}

	room, err := gw.registry.Get(roomID)
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}
	if err := room.StartGame(packet.Theme, packet.NumRounds); err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
	}
}

func (gw *Gateway) handleGuessSubmit(c *client, packet clientPacket) {
	gw.mu.RLock()
	roomID, team, isHost := c.roomID, c.teamName, c.isHost
	gw.mu.RUnlock()

	// The team identity comes from the connection binding, not the
	// packet, so one team cannot submit for another.
	if roomID == "" || isHost || team == "" {
		gw.sendTo(c, newErrorMsg("Only teams can submit guesses"))
		return
	}

	room, err := gw.registry.Get(roomID)
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}
	if err := room.SubmitGuess(team, packet.Text); err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
	}
}

func (gw *Gateway) handleReconnect(c *client, packet clientPacket) {
	room, err := gw.registry.Get(packet.RoomID)
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}

	st, err := room.State()
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}

	if packet.IsHost {
		gw.rebind(c, packet.RoomID, "", true)
	} else {
		if packet.TeamName == "" || st.Scores == nil {
			gw.sendTo(c, newErrorMsg(ErrInvalidReconnect.Error()))
			return
		}
		if _, known := st.Scores[packet.TeamName]; !known {
			gw.sendTo(c, newErrorMsg(ErrInvalidReconnect.Error()))
			return
		}
		gw.rebind(c, packet.RoomID, packet.TeamName, false)
	}

	gw.log.Info().Str("conn", c.id).Str("room", packet.RoomID).
		Str("team", packet.TeamName).Bool("host", packet.IsHost).Msg("client reconnected")
	gw.sendTo(c, newReconnectedMsg(st, packet.IsHost))
}

// withHostRoom runs a host-only room call for a bound host connection.
func (gw *Gateway) withHostRoom(c *client, fn func(*Room) error) {
	roomID, isHost := gw.identity(c)
	if !isHost {
		gw.sendTo(c, newErrorMsg("Only host can do that"))
		return
	}

	room, err := gw.registry.Get(roomID)
	if err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
		return
	}
	if err := fn(room); err != nil {
		gw.sendTo(c, newErrorMsg(err.Error()))
	}
}

// ---- bookkeeping ----

func (gw *Gateway) identity(c *client) (roomID string, isHost bool) {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	return c.roomID, c.isHost
}

// bind associates the connection with a room identity without touching
// anyone else. Fresh team joins use this: if the identity were already
// held, the room would have rejected the name.
func (gw *Gateway) bind(c *client, roomID, teamName string, isHost bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.bindLocked(c, roomID, teamName, isHost)
}

// rebind takes over a room identity. Any previous connection holding it
// is evicted: the newest connection wins, which is what makes
// reconnection and host refresh work.
func (gw *Gateway) rebind(c *client, roomID, teamName string, isHost bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	var evicted *client
	for other := range gw.byRoom[roomID] {
		if other != c && other.isHost == isHost && other.teamName == teamName {
			evicted = other
			break
		}
	}
	if evicted != nil {
		gw.removeLocked(evicted)
		gw.log.Debug().Str("conn", evicted.id).Str("room", roomID).
			Msg("evicting previous connection")
		go evicted.session.Close("replaced by reconnection")
	}

	gw.bindLocked(c, roomID, teamName, isHost)
}

func (gw *Gateway) bindLocked(c *client, roomID, teamName string, isHost bool) {
	gw.removeLocked(c)

	c.roomID = roomID
	c.teamName = teamName
	c.isHost = isHost
	if gw.byRoom[roomID] == nil {
		gw.byRoom[roomID] = make(map[*client]struct{})
	}
	gw.byRoom[roomID][c] = struct{}{}
}

func (gw *Gateway) unbind(c *client) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.removeLocked(c)
}

func (gw *Gateway) removeLocked(c *client) {
	if c.roomID == "" {
		return
	}
	if set, ok := gw.byRoom[c.roomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(gw.byRoom, c.roomID)
		}
	}
	c.roomID = ""
	c.teamName = ""
	c.isHost = false
}

func (gw *Gateway) disconnect(c *client) {
	gw.mu.Lock()
	roomID, team, isHost := c.roomID, c.teamName, c.isHost
	gw.removeLocked(c)
	gw.mu.Unlock()

	close(c.outbox)
	if roomID != "" {
		// Disconnection is not an error; the room keeps running and the
		// client may reconnect by room code + team name.
		gw.log.Info().Str("conn", c.id).Str("room", roomID).Str("team", team).
			Bool("host", isHost).Msg("client disconnected")
	}
}

func (gw *Gateway) sendTo(c *client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		gw.log.Error().Err(err).Msg("marshal failed")
		return
	}
	c.send(data)
}
