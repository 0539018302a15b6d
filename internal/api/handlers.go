package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/reigigax/ring-de-batalla/internal/database"
	"github.com/reigigax/ring-de-batalla/internal/server"
	"github.com/reigigax/ring-de-batalla/internal/types"
)

func roomFromDb(r database.Room) types.Room {
	return types.Room{
		Id:              r.Id,
		ExternalId:      r.ExternalId,
		Title:           r.Title,
		Description:     r.Description,
		RoomType:        r.RoomType,
		Status:          r.Status,
		CreatorId:       r.CreatorId,
		SaveHistory:     r.SaveHistory,
		GenerateSummary: r.GenerateSummary,
		Agreement:       r.Agreement.String,
		DurationSeconds: int(r.DurationSeconds.Int64),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (s *DebateApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *DebateApp) listUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.db.ListAccounts()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, len(accounts))
	for i, a := range accounts {
		users[i] = types.User{
			Id:        a.Id,
			Username:  a.Username,
			AvatarUrl: a.AvatarUrl,
		}
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *DebateApp) createRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var params database.CreateRoomParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if params.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if params.RoomType == "" {
		params.RoomType = database.RoomTypeGeneral
	}
	if params.RoomType != database.RoomTypeGeneral && params.RoomType != database.RoomTypePrivate {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId, err := shortid.Generate()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params.ExternalId = externalId
	params.CreatorId = userId

	dbRoom, err := s.db.CreateRoom(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// The creator is a participant from the start, even before their socket
	// joins the live session.
	if err := s.db.EnsureParticipant(dbRoom.Id, userId, database.RoleModerator); err != nil {
		s.log.Error().Err(err).Int("room_id", dbRoom.Id).Msg("failed to upsert creator participant")
	}

	s.writeJson(w, http.StatusCreated, roomFromDb(dbRoom))
}

func (s *DebateApp) getRoom(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRoom, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	participants, err := s.db.ListParticipants(dbRoom.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	members := make([]types.Participant, len(participants))
	for i, p := range participants {
		members[i] = types.Participant{
			UserId:    p.UserId,
			Username:  p.Username,
			AvatarUrl: p.AvatarUrl,
			Role:      p.Role,
		}
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"room":         roomFromDb(dbRoom),
		"participants": members,
	})
}

func (s *DebateApp) listRooms(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = database.RoomStatusScheduled
	}

	dbRooms, err := s.db.ListRoomsByStatus(status)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, len(dbRooms))
	for i, dbRoom := range dbRooms {
		rooms[i] = roomFromDb(dbRoom)
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *DebateApp) updateRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("id")
	dbRoom, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if dbRoom.CreatorId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if dbRoom.Status == database.RoomStatusFinalized {
		errResp := NewConflictError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var params database.UpdateRoomParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil || params.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	params.RoomId = dbRoom.Id

	updated, err := s.db.UpdateRoom(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roomFromDb(updated))
}

func (s *DebateApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("id")
	dbRoom, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if dbRoom.CreatorId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteRoom(dbRoom.Id); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// Tear down any live session for the room.
	s.ds.RemoveRoom(dbRoom.ExternalId)

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *DebateApp) createInvitation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req struct {
		RecipientId int    `json:"recipient_id"`
		RoomId      string `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipientId == 0 || req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRoom, err := s.db.GetRoomByExternalId(req.RoomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inv, err := s.db.CreateInvitation(database.CreateInvitationParams{
		SenderId:    userId,
		RecipientId: req.RecipientId,
		RoomId:      dbRoom.Id,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invitation := invitationFromDb(inv)
	// Best-effort real-time push; offline recipients poll the list instead.
	s.ds.NotifyInvitation(invitation)

	s.writeJson(w, http.StatusCreated, invitation)
}

func (s *DebateApp) listInvitations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbInvitations, err := s.db.ListInvitationsForUser(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invitations := make([]types.Invitation, len(dbInvitations))
	for i, inv := range dbInvitations {
		invitations[i] = invitationFromDb(inv)
	}

	s.writeJson(w, http.StatusOK, invitations)
}

func (s *DebateApp) respondInvitation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req struct {
		Id     int    `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Id == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Status != database.InvitationAccepted && req.Status != database.InvitationDeclined {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	inv, err := s.db.UpdateInvitationStatus(req.Id, userId, req.Status)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	invitation := invitationFromDb(inv)
	s.ds.NotifyInvitationResponse(invitation)

	s.writeJson(w, http.StatusOK, invitation)
}

func invitationFromDb(inv database.Invitation) types.Invitation {
	return types.Invitation{
		Id:          inv.Id,
		SenderId:    inv.SenderId,
		RecipientId: inv.RecipientId,
		RoomId:      inv.RoomId,
		RoomTitle:   inv.RoomTitle,
		SenderName:  inv.SenderName,
		Status:      inv.Status,
		CreatedAt:   inv.CreatedAt,
	}
}

func (s *DebateApp) getHistory(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if q := r.URL.Query().Get("user_id"); q != "" {
		// Only the session user's own history is visible.
		if id, err := strconv.Atoi(q); err != nil || id != userId {
			errResp := NewForbiddenError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	rows, err := s.db.ListHistoryForUser(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	entries := make([]types.HistoryEntry, len(rows))
	for i, row := range rows {
		entries[i] = types.HistoryEntry{
			Room:              roomFromDb(row.Room),
			TotalParticipants: row.TotalParticipants,
		}
		if row.SummaryId.Valid {
			id := int(row.SummaryId.Int64)
			entries[i].SummaryId = &id
		}
	}

	s.writeJson(w, http.StatusOK, entries)
}

func (s *DebateApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("error upgrading connection")
		return
	}

	client := server.NewClient(types.User{
		Id:        user.Id,
		Username:  user.Username,
		AvatarUrl: user.AvatarUrl,
	}, conn, s.ds, s.log)

	s.ds.RegisterChan <- client

	go client.Write()
	go client.Read()
}
