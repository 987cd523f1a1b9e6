package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketStore struct {
	db *sqlx.DB
}

func NewBracketStore(db *sqlx.DB) *BracketStore {
	return &BracketStore{db: db}
}

const (
	insertBracketQuery = `INSERT INTO brackets (id, event_id, format, status, champion_participant_id, stalled, created_at)
		VALUES (:id, :event_id, :format, :status, :champion_participant_id, :stalled, :created_at)`
	insertParticipantQuery = `INSERT INTO participants (id, bracket_id, team_id, seed, is_eliminated, elimination_round, final_position)
		VALUES (:id, :bracket_id, :team_id, :seed, :is_eliminated, :elimination_round, :final_position)`
	insertMatchQuery = `INSERT INTO matches (id, bracket_id, bracket_side, round, match_number,
			slot1_participant_id, slot1_source_match_id, slot1_wants_winner,
			slot2_participant_id, slot2_source_match_id, slot2_wants_winner,
			status, score_1, score_2, winner_participant_id, created_at)
		VALUES (:id, :bracket_id, :bracket_side, :round, :match_number,
			:slot1_participant_id, :slot1_source_match_id, :slot1_wants_winner,
			:slot2_participant_id, :slot2_source_match_id, :slot2_wants_winner,
			:status, :score_1, :score_2, :winner_participant_id, :created_at)`

	updateBracketQuery = `UPDATE brackets SET
		status = :status,
		champion_participant_id = :champion_participant_id,
		stalled = :stalled
		WHERE id = :id`
	updateParticipantQuery = `UPDATE participants SET
		is_eliminated = :is_eliminated,
		elimination_round = :elimination_round,
		final_position = :final_position
		WHERE id = :id`
	updateMatchQuery = `UPDATE matches SET
		slot1_participant_id = :slot1_participant_id,
		slot1_source_match_id = :slot1_source_match_id,
		slot1_wants_winner = :slot1_wants_winner,
		slot2_participant_id = :slot2_participant_id,
		slot2_source_match_id = :slot2_source_match_id,
		slot2_wants_winner = :slot2_wants_winner,
		status = :status,
		score_1 = :score_1,
		score_2 = :score_2,
		winner_participant_id = :winner_participant_id
		WHERE id = :id`
)

// matchRow is the flattened form of a match. Each slot is stored either as a
// participant or as a (source match, wants winner) pair, never both.
type matchRow struct {
	ID                  uuid.UUID           `db:"id"`
	BracketID           uuid.UUID           `db:"bracket_id"`
	Side                bracket.BracketSide `db:"bracket_side"`
	Round               int                 `db:"round"`
	MatchNumber         int                 `db:"match_number"`
	Slot1ParticipantID  *uuid.UUID          `db:"slot1_participant_id"`
	Slot1SourceMatchID  *uuid.UUID          `db:"slot1_source_match_id"`
	Slot1WantsWinner    *bool               `db:"slot1_wants_winner"`
	Slot2ParticipantID  *uuid.UUID          `db:"slot2_participant_id"`
	Slot2SourceMatchID  *uuid.UUID          `db:"slot2_source_match_id"`
	Slot2WantsWinner    *bool               `db:"slot2_wants_winner"`
	Status              bracket.MatchStatus `db:"status"`
	Score1              *int                `db:"score_1"`
	Score2              *int                `db:"score_2"`
	WinnerParticipantID *uuid.UUID          `db:"winner_participant_id"`
	CreatedAt           time.Time           `db:"created_at"`
}

func toMatchRow(m *bracket.Match) matchRow {
	row := matchRow{
		ID:                  m.ID,
		BracketID:           m.BracketID,
		Side:                m.Side,
		Round:               m.Round,
		MatchNumber:         m.MatchNumber,
		Status:              m.Status,
		WinnerParticipantID: m.WinnerParticipantID,
		CreatedAt:           m.CreatedAt,
	}
	row.Slot1ParticipantID, row.Slot1SourceMatchID, row.Slot1WantsWinner = flattenSlot(m.Slot1)
	row.Slot2ParticipantID, row.Slot2SourceMatchID, row.Slot2WantsWinner = flattenSlot(m.Slot2)
	if m.Score != nil {
		s1, s2 := m.Score.Slot1, m.Score.Slot2
		row.Score1, row.Score2 = &s1, &s2
	}
	return row
}

func flattenSlot(s bracket.Slot) (participant, source *uuid.UUID, wantsWinner *bool) {
	if id, ok := s.Participant(); ok {
		return &id, nil, nil
	}
	if src, w, ok := s.Placeholder(); ok {
		return nil, &src, &w
	}
	return nil, nil, nil
}

func (r *matchRow) toMatch() (bracket.Match, error) {
	slot1, err := r.slot(1, r.Slot1ParticipantID, r.Slot1SourceMatchID, r.Slot1WantsWinner)
	if err != nil {
		return bracket.Match{}, err
	}
	slot2, err := r.slot(2, r.Slot2ParticipantID, r.Slot2SourceMatchID, r.Slot2WantsWinner)
	if err != nil {
		return bracket.Match{}, err
	}

	m := bracket.Match{
		ID:                  r.ID,
		BracketID:           r.BracketID,
		Side:                r.Side,
		Round:               r.Round,
		MatchNumber:         r.MatchNumber,
		Slot1:               slot1,
		Slot2:               slot2,
		Status:              r.Status,
		WinnerParticipantID: r.WinnerParticipantID,
		CreatedAt:           r.CreatedAt,
	}
	if r.Score1 != nil && r.Score2 != nil {
		m.Score = &bracket.Score{Slot1: *r.Score1, Slot2: *r.Score2}
	}
	return m, nil
}

func (r *matchRow) slot(n int, participant, source *uuid.UUID, wantsWinner *bool) (bracket.Slot, error) {
	switch {
	case participant != nil && source == nil:
		return bracket.BoundSlot(*participant), nil
	case participant == nil && source != nil && wantsWinner != nil:
		return bracket.PlaceholderSlot(*source, *wantsWinner), nil
	}
	return bracket.Slot{}, bracket.Invariantf("match %s slot %d is neither bound nor a placeholder", r.ID, n)
}

func (s *BracketStore) CreateBracket(ctx context.Context, tx *sqlx.Tx, b *bracket.Bracket) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := tx.NamedExecContext(ctx, insertBracketQuery, b)
	return err
}

func (s *BracketStore) CreateParticipants(ctx context.Context, tx *sqlx.Tx, participants []bracket.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, insertParticipantQuery, participants)
	return err
}

// CreateMatches inserts matches in the order given. Placeholders reference earlier
// matches, so callers pass them sorted by match number.
func (s *BracketStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]matchRow, len(matches))
	for i := range matches {
		if matches[i].CreatedAt.IsZero() {
			matches[i].CreatedAt = now
		}
		rows[i] = toMatchRow(&matches[i])
	}
	_, err := tx.NamedExecContext(ctx, insertMatchQuery, rows)
	return err
}

func (s *BracketStore) GetBracketByEvent(ctx context.Context, eventID uuid.UUID) (*bracket.Bracket, error) {
	return getBracket(ctx, s.db, "SELECT * FROM brackets WHERE event_id = ?", eventID)
}

func (s *BracketStore) GetBracketByEventTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (*bracket.Bracket, error) {
	return getBracket(ctx, tx, "SELECT * FROM brackets WHERE event_id = ?"+forUpdate(s.db), eventID)
}

// ReadBracketByEvent reads the bracket row inside tx without locking it, for
// read-only snapshots.
func (s *BracketStore) ReadBracketByEvent(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (*bracket.Bracket, error) {
	return getBracket(ctx, tx, "SELECT * FROM brackets WHERE event_id = ?", eventID)
}

// LockBracket reads the bracket row inside tx and holds its lock until the
// transaction ends. Every mutation of the bracket goes through here first.
func (s *BracketStore) LockBracket(ctx context.Context, tx *sqlx.Tx, bracketID uuid.UUID) (*bracket.Bracket, error) {
	return getBracket(ctx, tx, "SELECT * FROM brackets WHERE id = ?"+forUpdate(s.db), bracketID)
}

func getBracket(ctx context.Context, q queryer, query string, arg uuid.UUID) (*bracket.Bracket, error) {
	var b bracket.Bracket
	err := sqlx.GetContext(ctx, q, &b, q.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bracket.NotFoundf("bracket for %s", arg)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// MatchBracketID finds which bracket a match belongs to without taking any lock.
func (s *BracketStore) MatchBracketID(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.GetContext(ctx, &id, tx.Rebind("SELECT bracket_id FROM matches WHERE id = ?"), matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, bracket.NotFoundf("match %s", matchID)
	}
	return id, err
}

func (s *BracketStore) GetParticipants(ctx context.Context, bracketID uuid.UUID) ([]bracket.Participant, error) {
	return getParticipants(ctx, s.db, bracketID)
}

func (s *BracketStore) GetParticipantsTx(ctx context.Context, tx *sqlx.Tx, bracketID uuid.UUID) ([]bracket.Participant, error) {
	return getParticipants(ctx, tx, bracketID)
}

func getParticipants(ctx context.Context, q queryer, bracketID uuid.UUID) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	err := sqlx.SelectContext(ctx, q, &participants, q.Rebind("SELECT * FROM participants WHERE bracket_id = ? ORDER BY seed ASC"), bracketID)
	return participants, err
}

func (s *BracketStore) GetMatches(ctx context.Context, bracketID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, s.db, bracketID)
}

func (s *BracketStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, bracketID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, tx, bracketID)
}

func getMatches(ctx context.Context, q queryer, bracketID uuid.UUID) ([]bracket.Match, error) {
	var rows []matchRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind("SELECT * FROM matches WHERE bracket_id = ? ORDER BY match_number ASC"), bracketID)
	if err != nil {
		return nil, err
	}

	matches := make([]bracket.Match, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toMatch()
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *BracketStore) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	var row matchRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT * FROM matches WHERE id = ?"), matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bracket.NotFoundf("match %s", matchID)
	}
	if err != nil {
		return nil, err
	}
	m, err := row.toMatch()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *BracketStore) UpdateBracket(ctx context.Context, tx *sqlx.Tx, b *bracket.Bracket) error {
	return execOne(ctx, tx, updateBracketQuery, b, "bracket", b.ID)
}

func (s *BracketStore) UpdateParticipant(ctx context.Context, tx *sqlx.Tx, p *bracket.Participant) error {
	return execOne(ctx, tx, updateParticipantQuery, p, "participant", p.ID)
}

func (s *BracketStore) UpdateMatch(ctx context.Context, tx *sqlx.Tx, m *bracket.Match) error {
	return execOne(ctx, tx, updateMatchQuery, toMatchRow(m), "match", m.ID)
}

func execOne(ctx context.Context, tx *sqlx.Tx, query string, arg any, kind string, id uuid.UUID) error {
	res, err := tx.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return bracket.NotFoundf("%s %s", kind, id)
	}
	return nil
}

// DeleteBracket removes the bracket together with its participants and matches.
func (s *BracketStore) DeleteBracket(ctx context.Context, tx *sqlx.Tx, bracketID uuid.UUID) error {
	for _, query := range []string{
		"DELETE FROM matches WHERE bracket_id = ?",
		"DELETE FROM participants WHERE bracket_id = ?",
		"DELETE FROM brackets WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), bracketID); err != nil {
			return fmt.Errorf("delete bracket %s: %w", bracketID, err)
		}
	}
	return nil
}
