package database

import (
	"database/sql"
	"time"
)

const (
	RoomStatusScheduled = "scheduled"
	RoomStatusRunning   = "running"
	RoomStatusFinalized = "finalized"
)

const (
	RoomTypeGeneral = "general"
	RoomTypePrivate = "private"
)

const (
	RoleModerator = "moderator"
	RoleDebater   = "debater"
)

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

type Account struct {
	Id           int       `db:"id"`
	Username     string    `db:"username"`
	EmailAddress string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	AvatarUrl    string    `db:"avatar_url"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Room struct {
	Id              int            `db:"id"`
	ExternalId      string         `db:"external_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	RoomType        string         `db:"room_type"`
	Status          string         `db:"status"`
	CreatorId       int            `db:"creator_id"`
	SaveHistory     bool           `db:"save_history"`
	GenerateSummary bool           `db:"generate_summary"`
	Agreement       sql.NullString `db:"agreement"`
	DurationSeconds sql.NullInt64  `db:"duration_seconds"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

type Participant struct {
	Id        int       `db:"id"`
	RoomId    int       `db:"room_id"`
	UserId    int       `db:"user_id"`
	Role      string    `db:"role"`
	Username  string    `db:"username"`
	AvatarUrl string    `db:"avatar_url"`
	CreatedAt time.Time `db:"created_at"`
}

type Summary struct {
	Id          int       `db:"id"`
	RoomId      int       `db:"room_id"`
	Synopsis    string    `db:"synopsis"`
	Transcript  string    `db:"transcript"`
	FinalizedBy int       `db:"finalized_by"`
	CreatedAt   time.Time `db:"created_at"`
}

type Invitation struct {
	Id          int       `db:"id"`
	SenderId    int       `db:"sender_id"`
	RecipientId int       `db:"recipient_id"`
	RoomId      int       `db:"room_id"`
	Status      string    `db:"status"`
	SenderName  string    `db:"sender_name"`
	RoomTitle   string    `db:"room_title"`
	CreatedAt   time.Time `db:"created_at"`
}

// HistoryRow is one finalized debate in a user's history, with aggregates
// computed by the history query.
type HistoryRow struct {
	Room
	TotalParticipants int           `db:"total_participants"`
	SummaryId         sql.NullInt64 `db:"summary_id"`
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	AvatarUrl    string
}

type UpdateAccountParams struct {
	UserId    int
	Username  string
	AvatarUrl string
}

type CreateRoomParams struct {
	ExternalId      string `json:"-"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	RoomType        string `json:"room_type"`
	CreatorId       int    `json:"-"`
	SaveHistory     bool   `json:"save_history"`
	GenerateSummary bool   `json:"generate_summary"`
}

type UpdateRoomParams struct {
	RoomId      int    `json:"-"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type CreateSummaryParams struct {
	RoomId      int
	Synopsis    string
	Transcript  string
	FinalizedBy int
}

type CreateInvitationParams struct {
	SenderId    int
	RecipientId int
	RoomId      int
}
