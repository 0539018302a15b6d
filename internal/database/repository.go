package database

import "errors"

// ErrAlreadyFinalized is returned by FinalizeRoom when the room's persisted
// status is already finalized. Callers treat a second finalize as a no-op.
var ErrAlreadyFinalized = errors.New("room already finalized")

type Repository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	UpdateAccount(params UpdateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	ListAccounts() ([]Account, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	ListRoomsByStatus(status string) ([]Room, error)
	UpdateRoom(params UpdateRoomParams) (Room, error)
	DeleteRoom(id int) error
	SetRoomStatus(roomId int, status string) error
	FinalizeRoom(roomId int, agreement string, durationSeconds int) error
	EnsureParticipant(roomId, userId int, role string) error
	ListParticipants(roomId int) ([]Participant, error)
	CreateSummary(params CreateSummaryParams) (Summary, error)
	GetSummaryByRoomId(roomId int) (Summary, error)
	CreateInvitation(params CreateInvitationParams) (Invitation, error)
	ListInvitationsForUser(userId int) ([]Invitation, error)
	UpdateInvitationStatus(id, recipientId int, status string) (Invitation, error)
	ListHistoryForUser(userId int) ([]HistoryRow, error)
}
