package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	AvatarUrl    string    `json:"avatar_url,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id              int       `json:"id"`
	ExternalId      string    `json:"external_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	RoomType        string    `json:"room_type"`
	Status          string    `json:"status"`
	CreatorId       int       `json:"creator_id"`
	SaveHistory     bool      `json:"save_history"`
	GenerateSummary bool      `json:"generate_summary"`
	Agreement       string    `json:"agreement,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Participant is a single roster entry as sent to clients in
// participants_update broadcasts.
type Participant struct {
	UserId       int    `json:"user_id"`
	ConnectionId string `json:"connection_id"`
	Username     string `json:"username"`
	AvatarUrl    string `json:"avatar_url,omitempty"`
	Role         string `json:"role"`
}

type ChatMessage struct {
	RoomId    string    `json:"room_id"`
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Invitation struct {
	Id          int       `json:"id"`
	SenderId    int       `json:"sender_id"`
	RecipientId int       `json:"recipient_id"`
	RoomId      int       `json:"room_id"`
	RoomTitle   string    `json:"room_title,omitempty"`
	SenderName  string    `json:"sender_name,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// HistoryEntry is a finalized room as returned by the debate history
// endpoint, enriched with aggregate participant data.
type HistoryEntry struct {
	Room
	TotalParticipants int  `json:"total_participants"`
	SummaryId         *int `json:"summary_id,omitempty"`
}
