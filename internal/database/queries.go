package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (db *PgDebateRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	var a Account
	err := db.conn.Get(&a, `
		INSERT INTO accounts (username, email, password_hash, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING *`,
		params.Username, params.EmailAddress, params.PasswordHash, params.AvatarUrl, time.Now().UTC(),
	)
	return a, err
}

func (db *PgDebateRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	var a Account
	err := db.conn.Get(&a, `
		UPDATE accounts SET username = $2, avatar_url = $3, updated_at = $4
		WHERE id = $1
		RETURNING *`,
		params.UserId, params.Username, params.AvatarUrl, time.Now().UTC(),
	)
	return a, err
}

func (db *PgDebateRepository) GetAccountById(accountId int) (Account, error) {
	var a Account
	err := db.conn.Get(&a, `SELECT * FROM accounts WHERE id = $1 LIMIT 1`, accountId)
	return a, err
}

func (db *PgDebateRepository) GetAccountByEmail(email string) (Account, error) {
	var a Account
	err := db.conn.Get(&a, `SELECT * FROM accounts WHERE email = $1 LIMIT 1`, email)
	return a, err
}

func (db *PgDebateRepository) ListAccounts() ([]Account, error) {
	accounts := []Account{}
	err := db.conn.Select(&accounts, `SELECT * FROM accounts ORDER BY username`)
	return accounts, err
}

func (db *PgDebateRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	var r Room
	err := db.conn.Get(&r, `
		INSERT INTO rooms (external_id, title, description, room_type, status, creator_id,
			save_history, generate_summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING *`,
		params.ExternalId, params.Title, params.Description, params.RoomType,
		RoomStatusScheduled, params.CreatorId, params.SaveHistory, params.GenerateSummary,
		time.Now().UTC(),
	)
	return r, err
}

func (db *PgDebateRepository) GetRoomByExternalId(externalId string) (Room, error) {
	var r Room
	err := db.conn.Get(&r, `SELECT * FROM rooms WHERE external_id = $1 LIMIT 1`, externalId)
	return r, err
}

func (db *PgDebateRepository) ListRoomsByStatus(status string) ([]Room, error) {
	rooms := []Room{}
	err := db.conn.Select(&rooms, `SELECT * FROM rooms WHERE status = $1 ORDER BY created_at DESC`, status)
	return rooms, err
}

func (db *PgDebateRepository) UpdateRoom(params UpdateRoomParams) (Room, error) {
	var r Room
	err := db.conn.Get(&r, `
		UPDATE rooms SET title = $2, description = $3, updated_at = $4
		WHERE id = $1
		RETURNING *`,
		params.RoomId, params.Title, params.Description, time.Now().UTC(),
	)
	return r, err
}

func (db *PgDebateRepository) DeleteRoom(id int) error {
	_, err := db.conn.Exec(`DELETE FROM rooms WHERE id = $1`, id)
	return err
}

func (db *PgDebateRepository) SetRoomStatus(roomId int, status string) error {
	_, err := db.conn.Exec(`UPDATE rooms SET status = $2, updated_at = $3 WHERE id = $1`,
		roomId, status, time.Now().UTC())
	return err
}

// FinalizeRoom transitions a room to finalized and records the outcome. The
// status guard is part of the statement so a second finalize cannot win a
// race against the first.
func (db *PgDebateRepository) FinalizeRoom(roomId int, agreement string, durationSeconds int) error {
	res, err := db.conn.Exec(`
		UPDATE rooms SET status = $2, agreement = $3, duration_seconds = $4, updated_at = $5
		WHERE id = $1 AND status <> $2`,
		roomId, RoomStatusFinalized, agreement, durationSeconds, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyFinalized
	}

	return nil
}

func (db *PgDebateRepository) EnsureParticipant(roomId, userId int, role string) error {
	_, err := db.conn.Exec(`
		INSERT INTO participants (room_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id) DO NOTHING`,
		roomId, userId, role, time.Now().UTC(),
	)
	return err
}

func (db *PgDebateRepository) ListParticipants(roomId int) ([]Participant, error) {
	participants := []Participant{}
	err := db.conn.Select(&participants, `
		SELECT p.id, p.room_id, p.user_id, p.role, p.created_at, a.username, a.avatar_url
		FROM participants p
		JOIN accounts a ON p.user_id = a.id
		WHERE p.room_id = $1
		ORDER BY p.created_at`,
		roomId,
	)
	return participants, err
}

func (db *PgDebateRepository) CreateSummary(params CreateSummaryParams) (Summary, error) {
	var s Summary
	err := db.conn.Get(&s, `
		INSERT INTO summaries (room_id, synopsis, transcript, finalized_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`,
		params.RoomId, params.Synopsis, params.Transcript, params.FinalizedBy, time.Now().UTC(),
	)
	return s, err
}

func (db *PgDebateRepository) GetSummaryByRoomId(roomId int) (Summary, error) {
	var s Summary
	err := db.conn.Get(&s, `SELECT * FROM summaries WHERE room_id = $1 LIMIT 1`, roomId)
	return s, err
}

func (db *PgDebateRepository) CreateInvitation(params CreateInvitationParams) (Invitation, error) {
	var id int
	err := db.conn.Get(&id, `
		INSERT INTO invitations (sender_id, recipient_id, room_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		params.SenderId, params.RecipientId, params.RoomId, InvitationPending, time.Now().UTC(),
	)
	if err != nil {
		return Invitation{}, err
	}

	return db.getInvitation(id)
}

func (db *PgDebateRepository) getInvitation(id int) (Invitation, error) {
	var inv Invitation
	err := db.conn.Get(&inv, `
		SELECT i.id, i.sender_id, i.recipient_id, i.room_id, i.status, i.created_at,
			a.username AS sender_name, r.title AS room_title
		FROM invitations i
		JOIN accounts a ON i.sender_id = a.id
		JOIN rooms r ON i.room_id = r.id
		WHERE i.id = $1 LIMIT 1`,
		id,
	)
	return inv, err
}

func (db *PgDebateRepository) ListInvitationsForUser(userId int) ([]Invitation, error) {
	invitations := []Invitation{}
	err := db.conn.Select(&invitations, `
		SELECT i.id, i.sender_id, i.recipient_id, i.room_id, i.status, i.created_at,
			a.username AS sender_name, r.title AS room_title
		FROM invitations i
		JOIN accounts a ON i.sender_id = a.id
		JOIN rooms r ON i.room_id = r.id
		WHERE i.recipient_id = $1 AND i.status = $2
		ORDER BY i.created_at DESC`,
		userId, InvitationPending,
	)
	return invitations, err
}

func (db *PgDebateRepository) UpdateInvitationStatus(id, recipientId int, status string) (Invitation, error) {
	res, err := db.conn.Exec(`
		UPDATE invitations SET status = $3
		WHERE id = $1 AND recipient_id = $2 AND status = $4`,
		id, recipientId, status, InvitationPending,
	)
	if err != nil {
		return Invitation{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Invitation{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return Invitation{}, sql.ErrNoRows
	}

	return db.getInvitation(id)
}

// ListHistoryForUser returns the finalized debates a user took part in,
// restricted to rooms flagged for history retention.
func (db *PgDebateRepository) ListHistoryForUser(userId int) ([]HistoryRow, error) {
	rows := []HistoryRow{}
	err := db.conn.Select(&rows, `
		SELECT r.*, COUNT(p2.id) AS total_participants, MIN(s.id) AS summary_id
		FROM participants p
		JOIN rooms r ON p.room_id = r.id
		LEFT JOIN participants p2 ON r.id = p2.room_id
		LEFT JOIN summaries s ON r.id = s.room_id
		WHERE p.user_id = $1 AND r.status = $2 AND r.save_history
		GROUP BY r.id
		ORDER BY r.created_at DESC`,
		userId, RoomStatusFinalized,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return rows, nil
}
