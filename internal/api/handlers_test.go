package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/reigigax/ring-de-batalla/internal/database"
	"github.com/reigigax/ring-de-batalla/internal/types"
)

func authedRequest(method, target string, body []byte, userId int) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(WithUserId(req.Context(), userId))
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name         string
		mockErr      error
		expectedCode int
	}{
		{
			name:         "successful health check",
			expectedCode: http.StatusOK,
		},
		{
			name:         "failed health check",
			mockErr:      errors.New("db error"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockDebateRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, mockRepo)

			rr := httptest.NewRecorder()
			app.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")
			if tc.mockErr == nil {
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestListUsersHandler(t *testing.T) {
	mockRepo := &database.MockDebateRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("ListAccounts").Return([]database.Account{
		{Id: 1, Username: "alice", EmailAddress: "alice@example.com", PasswordHash: "hash"},
		{Id: 2, Username: "bob"},
	}, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.listUsers(rr, authedRequest(http.MethodGet, "/api/users", nil, 1))

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var users []types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&users), "expected valid json response")
	assert.Len(t, users, 2, "expected two users")
	assert.Equal(t, "alice", users[0].Username, "expected username to match")
	assert.Empty(t, users[0].EmailAddress, "expected email not to be exposed in the directory")
}

func TestCreateRoomHandler(t *testing.T) {
	t.Run("successfully creates a room", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("CreateRoom", mock.MatchedBy(func(p database.CreateRoomParams) bool {
			return p.Title == "Test Debate" &&
				p.CreatorId == 1 &&
				p.RoomType == database.RoomTypeGeneral &&
				p.SaveHistory &&
				p.ExternalId != ""
		})).Return(database.Room{
			Id:          10,
			ExternalId:  "abc123",
			Title:       "Test Debate",
			CreatorId:   1,
			Status:      database.RoomStatusScheduled,
			SaveHistory: true,
		}, nil).Once()
		mockRepo.On("EnsureParticipant", 10, 1, database.RoleModerator).Return(nil).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(database.CreateRoomParams{
			Title:       "Test Debate",
			SaveHistory: true,
		})

		rr := httptest.NewRecorder()
		app.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, 1))

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room), "expected valid json response")
		assert.Equal(t, "abc123", room.ExternalId, "expected external id to match")
		assert.Equal(t, database.RoomStatusScheduled, room.Status, "expected room to start scheduled")
	})

	t.Run("missing title", func(t *testing.T) {
		app := newTestApp(t, &database.MockDebateRepository{})

		body, _ := json.Marshal(database.CreateRoomParams{})
		rr := httptest.NewRecorder()
		app.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("unknown room type", func(t *testing.T) {
		app := newTestApp(t, &database.MockDebateRepository{})

		body, _ := json.Marshal(database.CreateRoomParams{Title: "Test", RoomType: "secret"})
		rr := httptest.NewRecorder()
		app.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})
}

func TestGetRoomHandler(t *testing.T) {
	t.Run("returns the room with its participants", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "abc123").Return(database.Room{
			Id:         10,
			ExternalId: "abc123",
			Title:      "Test Debate",
			CreatorId:  1,
		}, nil).Once()
		mockRepo.On("ListParticipants", 10).Return([]database.Participant{
			{UserId: 1, Username: "alice", Role: database.RoleModerator},
			{UserId: 2, Username: "bob", Role: database.RoleDebater},
		}, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getRoom(rr, authedRequest(http.MethodGet, "/api/rooms?id=abc123", nil, 1))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var resp struct {
			Room         types.Room          `json:"room"`
			Participants []types.Participant `json:"participants"`
		}
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "expected valid json response")
		assert.Equal(t, "abc123", resp.Room.ExternalId, "expected room external id to match")
		assert.Len(t, resp.Participants, 2, "expected two participants")
		assert.Equal(t, database.RoleModerator, resp.Participants[0].Role, "expected role to be carried")
	})

	t.Run("room not found", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "missing").Return(database.Room{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getRoom(rr, authedRequest(http.MethodGet, "/api/rooms?id=missing", nil, 1))

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})

	t.Run("missing id", func(t *testing.T) {
		app := newTestApp(t, &database.MockDebateRepository{})

		rr := httptest.NewRecorder()
		app.getRoom(rr, authedRequest(http.MethodGet, "/api/rooms", nil, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})
}

func TestListRoomsHandler(t *testing.T) {
	mockRepo := &database.MockDebateRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("ListRoomsByStatus", database.RoomStatusScheduled).Return([]database.Room{
		{Id: 10, ExternalId: "abc123", Title: "First"},
		{Id: 11, ExternalId: "def456", Title: "Second"},
	}, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.listRooms(rr, authedRequest(http.MethodGet, "/api/rooms/list", nil, 1))

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var rooms []types.Room
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms), "expected valid json response")
	assert.Len(t, rooms, 2, "expected two rooms")
}

func TestUpdateRoomHandler(t *testing.T) {
	room := database.Room{
		Id:         10,
		ExternalId: "abc123",
		Title:      "Original",
		CreatorId:  1,
		Status:     database.RoomStatusScheduled,
	}

	t.Run("creator updates the room", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "abc123").Return(room, nil).Once()
		mockRepo.On("UpdateRoom", database.UpdateRoomParams{
			RoomId: 10,
			Title:  "Renamed",
		}).Return(database.Room{Id: 10, ExternalId: "abc123", Title: "Renamed", CreatorId: 1}, nil).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(database.UpdateRoomParams{Title: "Renamed"})
		rr := httptest.NewRecorder()
		app.updateRoom(rr, authedRequest(http.MethodPut, "/api/rooms?id=abc123", body, 1))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var updated types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&updated), "expected valid json response")
		assert.Equal(t, "Renamed", updated.Title, "expected title to be updated")
	})

	t.Run("non-creator is forbidden", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "abc123").Return(room, nil).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(database.UpdateRoomParams{Title: "Renamed"})
		rr := httptest.NewRecorder()
		app.updateRoom(rr, authedRequest(http.MethodPut, "/api/rooms?id=abc123", body, 2))

		assert.Equal(t, http.StatusForbidden, rr.Code, "expected status code to be 403")
	})

	t.Run("finalized room cannot be edited", func(t *testing.T) {
		finalized := room
		finalized.Status = database.RoomStatusFinalized

		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "abc123").Return(finalized, nil).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(database.UpdateRoomParams{Title: "Renamed"})
		rr := httptest.NewRecorder()
		app.updateRoom(rr, authedRequest(http.MethodPut, "/api/rooms?id=abc123", body, 1))

		assert.Equal(t, http.StatusConflict, rr.Code, "expected status code to be 409")
	})
}

func TestDeleteRoomHandler(t *testing.T) {
	room := database.Room{Id: 10, ExternalId: "abc123", CreatorId: 1}

	t.Run("creator deletes the room", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "abc123").Return(room, nil).Once()
		mockRepo.On("DeleteRoom", 10).Return(nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.deleteRoom(rr, authedRequest(http.MethodDelete, "/api/rooms?id=abc123", nil, 1))

		assert.Equal(t, http.StatusNoContent, rr.Code, "expected status code to be 204")
	})

	t.Run("non-creator is forbidden", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "abc123").Return(room, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.deleteRoom(rr, authedRequest(http.MethodDelete, "/api/rooms?id=abc123", nil, 2))

		assert.Equal(t, http.StatusForbidden, rr.Code, "expected status code to be 403")
	})
}

func TestCreateInvitationHandler(t *testing.T) {
	t.Run("successfully creates an invitation", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "abc123").Return(database.Room{Id: 10, ExternalId: "abc123", Title: "Test Debate"}, nil).Once()
		mockRepo.On("CreateInvitation", database.CreateInvitationParams{
			SenderId:    1,
			RecipientId: 2,
			RoomId:      10,
		}).Return(database.Invitation{
			Id:          5,
			SenderId:    1,
			RecipientId: 2,
			RoomId:      10,
			Status:      database.InvitationPending,
			RoomTitle:   "Test Debate",
			SenderName:  "alice",
		}, nil).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(map[string]any{"recipient_id": 2, "room_id": "abc123"})
		rr := httptest.NewRecorder()
		app.createInvitation(rr, authedRequest(http.MethodPost, "/api/invitations", body, 1))

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

		var inv types.Invitation
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&inv), "expected valid json response")
		assert.Equal(t, database.InvitationPending, inv.Status, "expected invitation to start pending")
		assert.Equal(t, "Test Debate", inv.RoomTitle, "expected room title enrichment")
	})

	t.Run("missing recipient", func(t *testing.T) {
		app := newTestApp(t, &database.MockDebateRepository{})

		body, _ := json.Marshal(map[string]any{"room_id": "abc123"})
		rr := httptest.NewRecorder()
		app.createInvitation(rr, authedRequest(http.MethodPost, "/api/invitations", body, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})
}

func TestRespondInvitationHandler(t *testing.T) {
	t.Run("recipient accepts", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("UpdateInvitationStatus", 5, 2, database.InvitationAccepted).Return(database.Invitation{
			Id:          5,
			SenderId:    1,
			RecipientId: 2,
			Status:      database.InvitationAccepted,
		}, nil).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(map[string]any{"id": 5, "status": database.InvitationAccepted})
		rr := httptest.NewRecorder()
		app.respondInvitation(rr, authedRequest(http.MethodPut, "/api/invitations", body, 2))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var inv types.Invitation
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&inv), "expected valid json response")
		assert.Equal(t, database.InvitationAccepted, inv.Status, "expected status to be updated")
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		app := newTestApp(t, &database.MockDebateRepository{})

		body, _ := json.Marshal(map[string]any{"id": 5, "status": "Maybe"})
		rr := httptest.NewRecorder()
		app.respondInvitation(rr, authedRequest(http.MethodPut, "/api/invitations", body, 2))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("responding to someone else's invitation", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("UpdateInvitationStatus", 5, 3, database.InvitationDeclined).Return(database.Invitation{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(map[string]any{"id": 5, "status": database.InvitationDeclined})
		rr := httptest.NewRecorder()
		app.respondInvitation(rr, authedRequest(http.MethodPut, "/api/invitations", body, 3))

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})
}

func TestListInvitationsHandler(t *testing.T) {
	mockRepo := &database.MockDebateRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("ListInvitationsForUser", 2).Return([]database.Invitation{
		{Id: 5, SenderId: 1, RecipientId: 2, Status: database.InvitationPending},
	}, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.listInvitations(rr, authedRequest(http.MethodGet, "/api/invitations", nil, 2))

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var invitations []types.Invitation
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&invitations), "expected valid json response")
	assert.Len(t, invitations, 1, "expected one invitation")
}

func TestGetHistoryHandler(t *testing.T) {
	t.Run("returns the user's history", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("ListHistoryForUser", 1).Return([]database.HistoryRow{
			{
				Room: database.Room{
					Id:              10,
					ExternalId:      "abc123",
					Title:           "Past Debate",
					Status:          database.RoomStatusFinalized,
					Agreement:       sql.NullString{String: "we agreed", Valid: true},
					DurationSeconds: sql.NullInt64{Int64: 120, Valid: true},
				},
				TotalParticipants: 3,
				SummaryId:         sql.NullInt64{Int64: 7, Valid: true},
			},
		}, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getHistory(rr, authedRequest(http.MethodGet, "/api/history", nil, 1))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var entries []types.HistoryEntry
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&entries), "expected valid json response")
		assert.Len(t, entries, 1, "expected one history entry")
		assert.Equal(t, "we agreed", entries[0].Agreement, "expected agreement to be carried")
		assert.Equal(t, 120, entries[0].DurationSeconds, "expected duration to be carried")
		assert.Equal(t, 3, entries[0].TotalParticipants, "expected participant count")
		assert.NotNil(t, entries[0].SummaryId, "expected summary reference")
		assert.Equal(t, 7, *entries[0].SummaryId, "expected summary id to match")
	})

	t.Run("requesting another user's history is forbidden", func(t *testing.T) {
		app := newTestApp(t, &database.MockDebateRepository{})

		rr := httptest.NewRecorder()
		app.getHistory(rr, authedRequest(http.MethodGet, "/api/history?user_id=2", nil, 1))

		assert.Equal(t, http.StatusForbidden, rr.Code, "expected status code to be 403")
	})
}

func TestAccountHandler(t *testing.T) {
	t.Run("get account", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", 1).Return(database.Account{Id: 1, Username: "testuser"}, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.account(rr, authedRequest(http.MethodGet, "/api/account", nil, 1))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})

	t.Run("update account", func(t *testing.T) {
		mockRepo := &database.MockDebateRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("UpdateAccount", database.UpdateAccountParams{
			UserId:    1,
			Username:  "renamed",
			AvatarUrl: "new.png",
		}).Return(database.Account{Id: 1, Username: "renamed", AvatarUrl: "new.png"}, nil).Once()

		app := newTestApp(t, mockRepo)

		body, _ := json.Marshal(UpdateAccountRequest{Username: "renamed", AvatarUrl: "new.png"})
		rr := httptest.NewRecorder()
		app.account(rr, authedRequest(http.MethodPut, "/api/account", body, 1))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var user types.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user), "expected valid json response")
		assert.Equal(t, "renamed", user.Username, "expected username to be updated")
	})

	t.Run("unsupported method", func(t *testing.T) {
		app := newTestApp(t, &database.MockDebateRepository{})

		rr := httptest.NewRecorder()
		app.account(rr, authedRequest(http.MethodPatch, "/api/account", nil, 1))

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, "expected status code to be 405")
	})
}
