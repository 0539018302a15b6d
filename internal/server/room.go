package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reigigax/ring-de-batalla/internal/database"
	"github.com/reigigax/ring-de-batalla/internal/types"
)

// idleRoomTimeout is how long a room with no connected participants stays
// loaded before its actor is unloaded.
const idleRoomTimeout = time.Minute

type exitReq struct {
	deleted bool
}

// rosterEntry is one live participant: the wire-facing profile plus the
// connection that owns it.
type rosterEntry struct {
	client      *Client
	participant types.Participant
}

// Room is a single-writer actor: its goroutine owns the roster and the
// debate timer, so handlers never race each other. Events from other rooms
// interleave freely; events within the room are run to completion.
type Room struct {
	id              int
	externalId      string
	title           string
	creatorId       int
	saveHistory     bool
	generateSummary bool

	ds  *DebateServer
	log zerolog.Logger

	roster     map[int]*rosterEntry
	clients    map[*Client]struct{}
	clientLock sync.RWMutex

	timer debateTimer

	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	timerFired    chan struct{}
	killTimer     *time.Timer
	exit          chan exitReq
	done          chan struct{}
}

func newRoom(ds *DebateServer, dbRoom database.Room) *Room {
	return &Room{
		id:              dbRoom.Id,
		externalId:      dbRoom.ExternalId,
		title:           dbRoom.Title,
		creatorId:       dbRoom.CreatorId,
		saveHistory:     dbRoom.SaveHistory,
		generateSummary: dbRoom.GenerateSummary,
		ds:              ds,
		log:             ds.log.With().Str("room", dbRoom.ExternalId).Logger(),
		roster:          make(map[int]*rosterEntry),
		clients:         make(map[*Client]struct{}),
		timer:           newDebateTimer(),
		joinChan:        make(chan *ClientMessage, 256),
		leaveChan:       make(chan *ClientMessage, 256),
		clientMsgChan:   make(chan *ClientMessage, 256),
		timerFired:      make(chan struct{}, 1),
		exit:            make(chan exitReq),
		done:            make(chan struct{}),
	}
}

func (r *Room) run() {
	r.log.Info().Msg("starting room")
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.clientMsgChan:
			switch {
			case msg.Chat != nil:
				r.handleChat(msg)
			case msg.StartTimer != nil:
				r.handleStartTimer(msg)
			case msg.EndDebate != nil:
				r.handleEndDebate(msg)
			}
		case <-r.timerFired:
			r.handleCountdownElapsed()
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

// handleJoin is the composite join: profile lookup, participant row upsert,
// roster replacement, full-roster broadcast, presence busy and, when the
// debate is already running, a one-time timer sync for the new connection.
func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	profile, err := r.ds.db.GetAccountById(c.user.Id)
	if err != nil {
		// Join is best-effort: a failed profile lookup aborts quietly rather
		// than inserting a half-formed roster entry.
		r.log.Error().Err(err).Int("user_id", c.user.Id).Msg("profile lookup failed, aborting join")
		c.queueMessage(ErrInternalError(join.Id))
		r.armKillTimerIfEmpty()
		return
	}

	role := database.RoleDebater
	if c.user.Id == r.creatorId {
		role = database.RoleModerator
	}

	// The persisted participant row is advisory history, independent of the
	// live roster. Failure to write it does not block the join.
	if err := r.ds.db.EnsureParticipant(r.id, c.user.Id, role); err != nil {
		r.log.Error().Err(err).Int("user_id", c.user.Id).Msg("participant upsert failed")
	}

	// Attach the new connection before evicting a replaced one, so the room
	// is never momentarily empty and the kill timer stays unarmed.
	r.addClient(c)

	// Re-join replaces any prior entry for this user, which is what makes
	// reconnection work without duplicate roster rows.
	if prev, ok := r.roster[c.user.Id]; ok && prev.client != c {
		r.removeClientConn(prev.client)
	}

	r.roster[c.user.Id] = &rosterEntry{
		client: c,
		participant: types.Participant{
			UserId:       c.user.Id,
			ConnectionId: c.connId,
			Username:     profile.Username,
			AvatarUrl:    profile.AvatarUrl,
			Role:         role,
		},
	}

	c.queueMessage(NoErrOK(join.Id, map[string]any{
		"room_id":      r.externalId,
		"title":        r.title,
		"creator_id":   r.creatorId,
		"participants": r.listMembers(),
	}))

	r.broadcastRoster()
	r.ds.requestPresence(presenceReq{userId: c.user.Id, status: StatusBusy})

	if r.timer.running() {
		c.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			TimerSync: &TimerSync{
				RoomId:         r.externalId,
				ElapsedSeconds: r.timer.elapsedSeconds(),
			},
		})
	}
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	userId := leaveMsg.GetUserId()

	entry, ok := r.roster[userId]
	if !ok {
		// Double-leave is a silent no-op: explicit leave and disconnect
		// cleanup may both arrive for the same user.
		if !leaveMsg.disconnect {
			leaveMsg.client.queueMessage(NoErrOK(leaveMsg.Id, nil))
		}
		return
	}

	// A leave from a stale connection must not evict the entry a newer
	// connection has already claimed.
	if leaveMsg.client != nil && entry.client != leaveMsg.client {
		r.log.Debug().Int("user_id", userId).Msg("ignoring leave from replaced connection")
		return
	}

	delete(r.roster, userId)
	r.removeClientConn(entry.client)

	if !leaveMsg.disconnect {
		leaveMsg.client.queueMessage(NoErrOK(leaveMsg.Id, nil))
		r.ds.requestPresence(presenceReq{userId: userId, status: StatusOnline})
	}

	r.broadcastRoster()
}

// handleChat fans the message out verbatim to everyone in the room,
// including the sender. Nothing is persisted here; the transcript only
// exists if the client hands one over at finalize time.
func (r *Room) handleChat(msg *ClientMessage) {
	c := msg.client
	if _, ok := r.roster[c.user.Id]; !ok {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id))

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: msg.Timestamp,
		},
		Chat: &types.ChatMessage{
			RoomId:    r.externalId,
			UserId:    c.user.Id,
			Username:  c.user.Username,
			Content:   msg.Chat.Content,
			Timestamp: msg.Timestamp,
		},
	})

	r.ds.stats.Incr(metricMessagesRelayed)
}

func (r *Room) handleStartTimer(msg *ClientMessage) {
	if msg.GetUserId() != r.creatorId {
		msg.client.queueMessage(ErrNotAuthorized(msg.Id))
		return
	}

	started := r.timer.startCountdown(r.ds.countdown, func() {
		select {
		case r.timerFired <- struct{}{}:
		default:
		}
	})
	if !started {
		// Duplicate start while counting down or running: absorbed, no
		// second countdown broadcast, no new start instant.
		r.log.Debug().Str("state", r.timer.state.String()).Msg("ignoring duplicate start")
		return
	}

	if err := r.ds.db.SetRoomStatus(r.id, database.RoomStatusRunning); err != nil {
		r.log.Error().Err(err).Msg("failed to mark room running")
	}

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		CountdownStart: &CountdownStart{
			RoomId:           r.externalId,
			CountdownSeconds: int(r.ds.countdown / time.Second),
		},
	})
}

func (r *Room) handleCountdownElapsed() {
	if !r.timer.arm() {
		return
	}

	r.log.Info().Msg("debate started")
	r.ds.stats.Incr(metricDebatesStarted)

	r.broadcast(&ServerMessage{
		BaseMessage:   BaseMessage{Timestamp: Now()},
		DebateStarted: &DebateStarted{RoomId: r.externalId},
	})
}

// handleEndDebate stops the timer first, then persists the outcome, then
// broadcasts it. Persistence failures are logged but never keep the live
// session in a running state.
func (r *Room) handleEndDebate(msg *ClientMessage) {
	if msg.GetUserId() != r.creatorId {
		msg.client.queueMessage(ErrNotAuthorized(msg.Id))
		return
	}

	end := msg.EndDebate
	elapsed, wasRunning := r.timer.stop()

	// The server-side clock is authoritative when the timer actually ran;
	// the client's measurement is only a fallback.
	duration := end.MeasuredDurationSeconds
	if wasRunning {
		duration = elapsed
	}

	err := r.ds.db.FinalizeRoom(r.id, end.Agreement, duration)
	switch {
	case errors.Is(err, database.ErrAlreadyFinalized):
		// Idempotent no-op: the first finalize already wrote the outcome and
		// told the room, so don't duplicate the summary or the broadcast.
		r.log.Debug().Msg("room already finalized")
		msg.client.queueMessage(NoErrOK(msg.Id, nil))
		return
	case err != nil:
		r.log.Error().Err(err).Msg("failed to finalize room")
	default:
		if r.generateSummary {
			if _, err := r.ds.db.CreateSummary(database.CreateSummaryParams{
				RoomId:      r.id,
				Synopsis:    fmt.Sprintf("Debate %q concluded with agreement: %s", r.title, end.Agreement),
				Transcript:  end.ChatTranscript,
				FinalizedBy: msg.GetUserId(),
			}); err != nil {
				r.log.Error().Err(err).Msg("failed to write summary")
			}
		}
	}

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		DebateEnded: &DebateEnded{
			RoomId:    r.externalId,
			Agreement: end.Agreement,
		},
	})

	r.ds.stats.Incr(metricDebatesFinalized)
}

func (r *Room) handleRoomTimeout() {
	r.log.Info().Msg("room idle, requesting unload")
	select {
	case r.ds.unloadRoomChan <- unloadRoomRequest{roomId: r.externalId}:
	default:
		// Couldn't hand off the unload; stay alive and retry after another
		// idle period.
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Info().Bool("deleted", e.deleted).Msg("room exiting")
	r.timer.cancelCountdown()
	r.killTimer.Stop()

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.externalId)
	}
	r.clientLock.Unlock()

	close(r.done)
}

// listMembers snapshots the current roster. Order is not significant.
func (r *Room) listMembers() []types.Participant {
	members := make([]types.Participant, 0, len(r.roster))
	for _, entry := range r.roster {
		members = append(members, entry.participant)
	}
	return members
}

// broadcastRoster sends the full participant list to everyone in the room.
// Full snapshots, never deltas: out-of-order delivery then collapses to a
// stale-but-complete view instead of a corrupted one.
func (r *Room) broadcastRoster() {
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Participants: &ParticipantsUpdate{
			RoomId:       r.externalId,
			Participants: r.listMembers(),
		},
	})
}

func (r *Room) broadcast(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}
		client.queueMessage(msg)
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	c.addRoom(r)
}

func (r *Room) removeClientConn(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	delete(r.clients, c)
	c.delRoom(r.externalId)

	if len(r.clients) == 0 {
		r.log.Debug().Msg("no clients left, starting kill timer")
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) armKillTimerIfEmpty() {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	if len(r.clients) == 0 {
		r.killTimer.Reset(idleRoomTimeout)
	}
}
