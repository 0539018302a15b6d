package database

import (
	"github.com/stretchr/testify/mock"
)

type MockDebateRepository struct {
	mock.Mock
}

func (m *MockDebateRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockDebateRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDebateRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDebateRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDebateRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDebateRepository) ListAccounts() ([]Account, error) {
	args := m.Called()
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockDebateRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockDebateRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockDebateRepository) ListRoomsByStatus(status string) ([]Room, error) {
	args := m.Called(status)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockDebateRepository) UpdateRoom(params UpdateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockDebateRepository) DeleteRoom(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockDebateRepository) SetRoomStatus(roomId int, status string) error {
	args := m.Called(roomId, status)
	return args.Error(0)
}
func (m *MockDebateRepository) FinalizeRoom(roomId int, agreement string, durationSeconds int) error {
	args := m.Called(roomId, agreement, durationSeconds)
	return args.Error(0)
}
func (m *MockDebateRepository) EnsureParticipant(roomId, userId int, role string) error {
	args := m.Called(roomId, userId, role)
	return args.Error(0)
}
func (m *MockDebateRepository) ListParticipants(roomId int) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockDebateRepository) CreateSummary(params CreateSummaryParams) (Summary, error) {
	args := m.Called(params)
	return args.Get(0).(Summary), args.Error(1)
}
func (m *MockDebateRepository) GetSummaryByRoomId(roomId int) (Summary, error) {
	args := m.Called(roomId)
	return args.Get(0).(Summary), args.Error(1)
}
func (m *MockDebateRepository) CreateInvitation(params CreateInvitationParams) (Invitation, error) {
	args := m.Called(params)
	return args.Get(0).(Invitation), args.Error(1)
}
func (m *MockDebateRepository) ListInvitationsForUser(userId int) ([]Invitation, error) {
	args := m.Called(userId)
	return args.Get(0).([]Invitation), args.Error(1)
}
func (m *MockDebateRepository) UpdateInvitationStatus(id, recipientId int, status string) (Invitation, error) {
	args := m.Called(id, recipientId, status)
	return args.Get(0).(Invitation), args.Error(1)
}
func (m *MockDebateRepository) ListHistoryForUser(userId int) ([]HistoryRow, error) {
	args := m.Called(userId)
	return args.Get(0).([]HistoryRow), args.Error(1)
}
