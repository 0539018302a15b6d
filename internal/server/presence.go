package server

// presenceEntry tracks a user's current connection and availability. A user
// has at most one entry; re-registration replaces the connection (last one
// wins), which is what makes reconnection work.
type presenceEntry struct {
	client *Client
	status string
}

type presenceReq struct {
	client *Client
	userId int
	status string
}

// All presence methods below run only on the DebateServer loop goroutine,
// which is the registry's single writer.

func (ds *DebateServer) handlePresence(req presenceReq) {
	switch {
	case req.client != nil:
		ds.registerPresence(req.client)
	default:
		ds.setPresenceStatus(req.userId, req.status)
	}
}

func (ds *DebateServer) registerPresence(c *Client) {
	ds.presence[c.user.Id] = &presenceEntry{client: c, status: StatusOnline}
	ds.log.Debug().Int("user_id", c.user.Id).Str("conn_id", c.connId).Msg("presence registered")
	ds.broadcastStatus(c.user.Id, StatusOnline)
}

// setPresenceStatus flips a user's status to busy or online. An unknown user
// is not an error: the status is still broadcast (presence is best-effort,
// consumers tolerate ghost statuses) but no entry is created.
func (ds *DebateServer) setPresenceStatus(userId int, status string) {
	if entry, ok := ds.presence[userId]; ok {
		entry.status = status
	}
	ds.broadcastStatus(userId, status)
}

// dropPresence removes the entry owned by the given connection, if any, and
// broadcasts offline. A stale connection that was already replaced by a
// newer registration leaves the newer entry alone.
func (ds *DebateServer) dropPresence(c *Client) {
	for userId, entry := range ds.presence {
		if entry.client == c {
			delete(ds.presence, userId)
			ds.broadcastStatus(userId, StatusOffline)
			return
		}
	}
}

func (ds *DebateServer) lookupConnection(userId int) *Client {
	if entry, ok := ds.presence[userId]; ok {
		return entry.client
	}
	return nil
}

func (ds *DebateServer) broadcastStatus(userId int, status string) {
	ds.broadcastAll(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		StatusUpdate: &StatusUpdate{
			UserId: userId,
			Status: status,
		},
	})
}

// requestPresence queues a presence transition from outside the loop (room
// goroutines, client read pumps). The send is non-blocking: presence is
// advisory and dropping a transition under pressure is preferable to
// deadlocking a room actor against the server loop.
func (ds *DebateServer) requestPresence(req presenceReq) {
	select {
	case ds.presenceChan <- req:
	default:
		ds.log.Warn().Int("user_id", req.userId).Msg("presence channel full, dropping update")
	}
}
