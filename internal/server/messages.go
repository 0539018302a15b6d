package server

import (
	"net/http"
	"time"

	"github.com/reigigax/ring-de-batalla/internal/types"
)

// Presence statuses carried in status_update events.
const (
	StatusOnline  = "online"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for everything a client can send over the
// socket. Exactly one of the operation fields is expected to be set.
type ClientMessage struct {
	BaseMessage
	Register    *Register    `json:"register,omitempty"`
	JoinRoom    *JoinRoom    `json:"join_room,omitempty"`
	LeaveRoom   *LeaveRoom   `json:"leave_room,omitempty"`
	JoinDebate  *JoinDebate  `json:"join_debate_room,omitempty"`
	LeaveDebate *LeaveDebate `json:"leave_debate_room,omitempty"`
	Chat        *Chat        `json:"send_chat_message,omitempty"`
	StartTimer  *StartTimer  `json:"start_debate_timer,omitempty"`
	EndDebate   *EndDebate   `json:"end_debate_with_agreement,omitempty"`
	UserId      int          `json:"-"`
	client      *Client      `json:"-"`
	// disconnect marks a leave synthesized by connection cleanup, which must
	// not flip the user's presence back to online.
	disconnect bool
}

func (cm *ClientMessage) GetUserId() int {
	if cm.UserId != 0 {
		return cm.UserId
	}
	if cm.client != nil {
		return cm.client.user.Id
	}
	return 0
}

type Register struct {
	UserId int `json:"user_id"`
}

type JoinRoom struct {
	UserId int `json:"user_id"`
}

type LeaveRoom struct {
	UserId int `json:"user_id"`
}

type JoinDebate struct {
	RoomId string `json:"room_id"`
	UserId int    `json:"user_id"`
}

type LeaveDebate struct {
	RoomId string `json:"room_id"`
	UserId int    `json:"user_id"`
}

type Chat struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

type StartTimer struct {
	RoomId string `json:"room_id"`
}

type EndDebate struct {
	RoomId                  string `json:"room_id"`
	Agreement               string `json:"agreement"`
	MeasuredDurationSeconds int    `json:"measured_duration_seconds"`
	ChatTranscript          string `json:"chat_transcript,omitempty"`
}

// ServerMessage is the envelope for everything the server pushes to clients.
type ServerMessage struct {
	BaseMessage
	Response           *Response           `json:"response,omitempty"`
	StatusUpdate       *StatusUpdate       `json:"status_update,omitempty"`
	Participants       *ParticipantsUpdate `json:"participants_update,omitempty"`
	Chat               *types.ChatMessage  `json:"chat_message,omitempty"`
	TimerSync          *TimerSync          `json:"room_timer_sync,omitempty"`
	CountdownStart     *CountdownStart     `json:"debate_countdown_start,omitempty"`
	DebateStarted      *DebateStarted      `json:"debate_started,omitempty"`
	DebateEnded        *DebateEnded        `json:"debate_ended,omitempty"`
	Invitation         *types.Invitation   `json:"invitation_received,omitempty"`
	InvitationResponse *types.Invitation   `json:"invitation_response,omitempty"`
	// UserId routes a directed message to that user's current connection.
	// Zero means broadcast to every connection.
	UserId     int     `json:"-"`
	SkipClient *Client `json:"-"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type StatusUpdate struct {
	UserId int    `json:"user_id"`
	Status string `json:"status"`
}

// ParticipantsUpdate always carries the room's full roster, never a delta.
// Clients treat it as idempotent full-state replacement.
type ParticipantsUpdate struct {
	RoomId       string              `json:"room_id"`
	Participants []types.Participant `json:"participants"`
}

type TimerSync struct {
	RoomId         string `json:"room_id"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

type CountdownStart struct {
	RoomId           string `json:"room_id"`
	CountdownSeconds int    `json:"countdown_seconds"`
}

type DebateStarted struct {
	RoomId string `json:"room_id"`
}

type DebateEnded struct {
	RoomId    string `json:"room_id"`
	Agreement string `json:"agreement"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrRoomFinalized(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusGone,
			Error:        "debate already finalized",
		},
	}
}

func ErrNotAuthorized(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "only the room creator may do that",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
