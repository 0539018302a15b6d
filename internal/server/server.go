package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reigigax/ring-de-batalla/internal/database"
	"github.com/reigigax/ring-de-batalla/internal/stats"
	"github.com/reigigax/ring-de-batalla/internal/types"
)

const (
	metricActiveConnections = "ActiveConnections"
	metricActiveRooms       = "ActiveRooms"
	metricMessagesRelayed   = "MessagesRelayed"
	metricDebatesStarted    = "DebatesStarted"
	metricDebatesFinalized  = "DebatesFinalized"
)

// DefaultCountdown is the grace period between start_debate_timer and the
// debate actually running.
const DefaultCountdown = 5 * time.Second

type unloadRoomRequest struct {
	roomId  string
	deleted bool
}

// DebateServer coordinates all live state: connected clients, the presence
// registry, and one actor goroutine per active room. The run loop is the
// single writer for the presence and room tables.
type DebateServer struct {
	log       zerolog.Logger
	db        database.Repository
	stats     stats.StatsProvider
	countdown time.Duration

	clients     map[*Client]struct{}
	clientsLock sync.Mutex

	presence map[int]*presenceEntry
	rooms    map[string]*Room

	joinChan       chan *ClientMessage
	presenceChan   chan presenceReq
	notifyChan     chan *ServerMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan unloadRoomRequest
	stop           chan struct{}
	done           chan struct{}
}

func NewDebateServer(logger zerolog.Logger, db database.Repository, su stats.StatsProvider, countdown time.Duration) (*DebateServer, error) {
	if countdown <= 0 {
		countdown = DefaultCountdown
	}

	ds := &DebateServer{
		log:            logger,
		db:             db,
		stats:          su,
		countdown:      countdown,
		clients:        make(map[*Client]struct{}),
		presence:       make(map[int]*presenceEntry),
		rooms:          make(map[string]*Room),
		joinChan:       make(chan *ClientMessage, 256),
		presenceChan:   make(chan presenceReq, 256),
		notifyChan:     make(chan *ServerMessage, 256),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan unloadRoomRequest, 64),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	su.RegisterMetric(metricActiveConnections)
	su.RegisterMetric(metricActiveRooms)
	su.RegisterMetric(metricMessagesRelayed)
	su.RegisterMetric(metricDebatesStarted)
	su.RegisterMetric(metricDebatesFinalized)

	return ds, nil
}

func (ds *DebateServer) Run() {
	for {
		select {
		case joinMsg := <-ds.joinChan:
			ds.handleJoinRequest(joinMsg)
		case client := <-ds.RegisterChan:
			ds.log.Debug().Str("conn_id", client.connId).Int("user_id", client.user.Id).Msg("adding connection")
			ds.addClient(client)
			ds.stats.Incr(metricActiveConnections)
		case client := <-ds.deRegisterChan:
			ds.log.Debug().Str("conn_id", client.connId).Int("user_id", client.user.Id).Msg("removing connection")
			ds.removeClient(client)
			ds.dropPresence(client)
			ds.stats.Decr(metricActiveConnections)
		case req := <-ds.presenceChan:
			ds.handlePresence(req)
		case msg := <-ds.notifyChan:
			ds.deliver(msg)
		case req := <-ds.unloadRoomChan:
			ds.handleUnloadRoom(req)
		case <-ds.stop:
			ds.log.Info().Msg("shutting down rooms")
			for _, r := range ds.rooms {
				r.exit <- exitReq{}
				<-r.done
			}

			close(ds.done)
			return
		}
	}
}

// handleJoinRequest routes a join_debate_room to its room actor, loading the
// room from the store and spawning the actor when it isn't live yet.
func (ds *DebateServer) handleJoinRequest(joinMsg *ClientMessage) {
	if room, ok := ds.rooms[joinMsg.JoinDebate.RoomId]; ok {
		select {
		case room.joinChan <- joinMsg:
		default:
			ds.log.Warn().Str("room", room.externalId).Msg("join channel full")
			joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	dbRoom, err := ds.db.GetRoomByExternalId(joinMsg.JoinDebate.RoomId)
	if err != nil {
		ds.log.Warn().Err(err).Str("room", joinMsg.JoinDebate.RoomId).Msg("room lookup failed")
		joinMsg.client.queueMessage(ErrRoomNotFound(joinMsg.Id))
		return
	}

	if dbRoom.Status == database.RoomStatusFinalized {
		joinMsg.client.queueMessage(ErrRoomFinalized(joinMsg.Id))
		return
	}

	room := newRoom(ds, dbRoom)
	ds.rooms[room.externalId] = room
	ds.stats.Incr(metricActiveRooms)
	room.joinChan <- joinMsg

	go room.run()
}

func (ds *DebateServer) handleUnloadRoom(req unloadRoomRequest) {
	r, ok := ds.rooms[req.roomId]
	if !ok {
		return
	}

	ds.log.Debug().Str("room", req.roomId).Bool("deleted", req.deleted).Msg("unloading room")
	delete(ds.rooms, req.roomId)
	ds.stats.Decr(metricActiveRooms)

	r.exit <- exitReq{deleted: req.deleted}
	<-r.done
}

// deliver routes a server message either to one user's current connection
// (directed, best-effort, at-most-once) or to every connection.
func (ds *DebateServer) deliver(msg *ServerMessage) {
	if msg.UserId != 0 {
		if c := ds.lookupConnection(msg.UserId); c != nil {
			c.queueMessage(msg)
		} else {
			ds.log.Debug().Int("user_id", msg.UserId).Msg("recipient offline, dropping notification")
		}
		return
	}

	ds.broadcastAll(msg)
}

func (ds *DebateServer) broadcastAll(msg *ServerMessage) {
	ds.clientsLock.Lock()
	defer ds.clientsLock.Unlock()

	for c := range ds.clients {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

// NotifyInvitation pushes an invitation_received event to the recipient's
// active connection, if they have one. Offline recipients are expected to
// find the invitation via the REST surface instead.
func (ds *DebateServer) NotifyInvitation(inv types.Invitation) {
	ds.notify(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Invitation:  &inv,
		UserId:      inv.RecipientId,
	})
}

// NotifyInvitationResponse pushes an invitation_response event to the
// original sender's active connection.
func (ds *DebateServer) NotifyInvitationResponse(inv types.Invitation) {
	ds.notify(&ServerMessage{
		BaseMessage:        BaseMessage{Timestamp: Now()},
		InvitationResponse: &inv,
		UserId:             inv.SenderId,
	})
}

func (ds *DebateServer) notify(msg *ServerMessage) {
	select {
	case ds.notifyChan <- msg:
	default:
		ds.log.Warn().Int("user_id", msg.UserId).Msg("notify channel full, dropping notification")
	}
}

// RemoveRoom tears down a live room session, typically because the room was
// deleted through the REST surface.
func (ds *DebateServer) RemoveRoom(externalId string) {
	select {
	case ds.unloadRoomChan <- unloadRoomRequest{roomId: externalId, deleted: true}:
	case <-ds.stop:
	}
}

func (ds *DebateServer) addClient(c *Client) {
	ds.clientsLock.Lock()
	defer ds.clientsLock.Unlock()
	ds.clients[c] = struct{}{}
}

func (ds *DebateServer) removeClient(c *Client) {
	ds.clientsLock.Lock()
	defer ds.clientsLock.Unlock()
	delete(ds.clients, c)
}

func (ds *DebateServer) Shutdown(ctx context.Context) error {
	ds.log.Info().Msg("received shutdown signal")

	ds.clientsLock.Lock()
	for c := range ds.clients {
		c.stopClient()
	}
	ds.clientsLock.Unlock()

	close(ds.stop)

	select {
	case <-ds.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
