package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/reigigax/ring-de-batalla/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. Identity comes from the authenticated
// session that upgraded the connection, never from event payloads.
type Client struct {
	connId       string
	conn         *websocket.Conn
	debateServer *DebateServer
	log          zerolog.Logger
	user         types.User
	send         chan *ServerMessage
	rooms        map[string]*Room
	roomsLock    sync.RWMutex
	stop         chan struct{}
	stopOnce     sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, ds *DebateServer, l zerolog.Logger) *Client {
	connId := uuid.NewString()
	return &Client{
		connId:       connId,
		conn:         conn,
		debateServer: ds,
		log:          l.With().Str("conn_id", connId).Int("user_id", user.Id).Logger(),
		user:         user,
		send:         make(chan *ServerMessage, 256),
		rooms:        make(map[string]*Room),
		stop:         make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Msg("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug().Msg("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("ws read")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn().Err(err).Msg("error parsing message")
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.Register != nil:
		c.debateServer.requestPresence(presenceReq{client: c})
	case msg.JoinRoom != nil:
		c.debateServer.requestPresence(presenceReq{userId: c.user.Id, status: StatusBusy})
	case msg.LeaveRoom != nil:
		c.debateServer.requestPresence(presenceReq{userId: c.user.Id, status: StatusOnline})
	case msg.JoinDebate != nil:
		c.joinDebateRoom(msg)
	case msg.LeaveDebate != nil:
		c.leaveDebateRoom(msg)
	case msg.Chat != nil:
		c.forwardToRoom(msg.Chat.RoomId, msg)
	case msg.StartTimer != nil:
		c.forwardToRoom(msg.StartTimer.RoomId, msg)
	case msg.EndDebate != nil:
		c.forwardToRoom(msg.EndDebate.RoomId, msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) joinDebateRoom(msg *ClientMessage) {
	select {
	case c.debateServer.joinChan <- msg:
	default:
		c.log.Warn().Msg("join channel full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveDebateRoom(msg *ClientMessage) {
	r := c.getRoom(msg.LeaveDebate.RoomId)
	if r == nil {
		// Leaving a room we're not in is a no-op, not an error.
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	select {
	case r.leaveChan <- msg:
	default:
		c.log.Warn().Str("room", r.externalId).Msg("leave channel full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) forwardToRoom(roomId string, msg *ClientMessage) {
	r := c.getRoom(roomId)
	if r == nil {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	select {
	case r.clientMsgChan <- msg:
	default:
		c.log.Warn().Str("room", r.externalId).Msg("room message channel full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Msg("failed to queue message, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("write message")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanup runs when the read pump exits: leave every joined room (each room
// broadcasts its updated roster) and then deregister, which drops presence
// and broadcasts a single offline status.
func (c *Client) cleanup() {
	c.leaveAllRooms()
	c.debateServer.deRegisterChan <- c
	c.stopClient()
}

func (c *Client) leaveAllRooms() {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	for _, room := range c.rooms {
		room.leaveChan <- &ClientMessage{
			LeaveDebate: &LeaveDebate{RoomId: room.externalId},
			UserId:      c.user.Id,
			client:      c,
			disconnect:  true,
		}
	}
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	delete(c.rooms, id)
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	c.rooms[r.externalId] = r
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	if room, ok := c.rooms[id]; ok {
		return room
	}

	return nil
}
