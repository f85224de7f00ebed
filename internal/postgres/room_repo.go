package postgres

import (
	"context"
	"errors"

	"github.com/Aklilu27/audiorooms/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (title, description, category, is_private, password_hash, host_id, host_username, max_speakers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		room.Title, room.Description, room.Category, room.IsPrivate,
		room.PasswordHash, room.HostID, room.HostUsername, room.MaxSpeakers,
	).Scan(&room.ID, &room.CreatedAt)
}

// GetActive returns an active room without its password hash.
func (r *RoomRepository) GetActive(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	query := `
		SELECT id, title, description, category, is_private, host_id, host_username, max_speakers, is_active, created_at
		FROM rooms WHERE id=$1 AND is_active`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rm.ID, &rm.Title, &rm.Description, &rm.Category, &rm.IsPrivate,
		&rm.HostID, &rm.HostUsername, &rm.MaxSpeakers, &rm.IsActive, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// GetActiveWithPassword additionally selects password_hash for the
// join-time password check.
func (r *RoomRepository) GetActiveWithPassword(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	query := `
		SELECT id, title, description, category, is_private, password_hash, host_id, host_username, max_speakers, is_active, created_at
		FROM rooms WHERE id=$1 AND is_active`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rm.ID, &rm.Title, &rm.Description, &rm.Category, &rm.IsPrivate, &rm.PasswordHash,
		&rm.HostID, &rm.HostUsername, &rm.MaxSpeakers, &rm.IsActive, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepository) List(ctx context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := parseRoomCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT id, title, description, category, is_private, host_id, host_username, max_speakers, is_active, created_at
		FROM rooms
		WHERE is_active
		  AND ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND id < $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(
			&rm.ID, &rm.Title, &rm.Description, &rm.Category, &rm.IsPrivate,
			&rm.HostID, &rm.HostUsername, &rm.MaxSpeakers, &rm.IsActive, &rm.CreatedAt); err != nil {
			return nil, "", err
		}
		rooms = append(rooms, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(rooms) == limit {
		last := rooms[len(rooms)-1]
		nextCursor = roomCursor{CreatedAt: last.CreatedAt, ID: last.ID}.token()
	}

	return rooms, nextCursor, nil
}

// Deactivate soft-deletes a room; the row stays for history.
func (r *RoomRepository) Deactivate(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE rooms SET is_active=false WHERE id=$1 AND is_active`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}
