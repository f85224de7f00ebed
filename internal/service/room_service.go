package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aklilu27/audiorooms/internal/domain"
	"github.com/Aklilu27/audiorooms/internal/postgres"

	"golang.org/x/crypto/bcrypt"
)

type RoomService struct {
	roomRepo *postgres.RoomRepository
}

func NewRoomService(roomRepo *postgres.RoomRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo}
}

type CreateRoomParams struct {
	Title       string
	Description string
	Category    string
	IsPrivate   bool
	Password    string
	MaxSpeakers int64
}

// CreateRoom validates input, hashes the password for private rooms and
// persists the room under the creating host.
func (s *RoomService) CreateRoom(ctx context.Context, hostID, hostUsername string, in CreateRoomParams) (*domain.Room, error) {
	title := strings.TrimSpace(in.Title)
	if len(title) < 3 {
		return nil, fmt.Errorf("%w: title must be at least 3 characters", domain.ErrInvalidInput)
	}
	if len(title) > 100 {
		return nil, fmt.Errorf("%w: title cannot exceed 100 characters", domain.ErrInvalidInput)
	}
	if in.IsPrivate && len(in.Password) < 4 {
		return nil, fmt.Errorf("%w: private rooms require a password of at least 4 characters", domain.ErrInvalidInput)
	}
	if in.Category == "" {
		in.Category = "Other"
	}
	if in.MaxSpeakers <= 0 || in.MaxSpeakers > 50 {
		in.MaxSpeakers = 10
	}

	var passwordHash string
	if in.IsPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	room := &domain.Room{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Category:     in.Category,
		IsPrivate:    in.IsPrivate,
		PasswordHash: passwordHash,
		HostID:       hostID,
		HostUsername: hostUsername,
		MaxSpeakers:  in.MaxSpeakers,
		IsActive:     true,
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}
	return room, nil
}

// GetRoom returns an active room by ID.
func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	return s.roomRepo.GetActive(ctx, id)
}

// ListRooms returns active rooms with cursor pagination.
func (s *RoomService) ListRooms(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return s.roomRepo.List(ctx, limit, cursor)
}

// CheckPassword verifies a private room's password. Public rooms accept
// any password. Returns the room on success so callers can grant access.
func (s *RoomService) CheckPassword(ctx context.Context, roomID, password string) (*domain.Room, error) {
	room, err := s.roomRepo.GetActiveWithPassword(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsPrivate {
		return room, nil
	}
	if password == "" {
		return nil, domain.ErrPasswordRequired
	}
	if bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidPassword
	}
	return room, nil
}

// DeleteRoom soft-deletes a room. Only the host may delete it.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, requesterID string) error {
	room, err := s.roomRepo.GetActive(ctx, roomID)
	if err != nil {
		return err
	}
	if room.HostID != requesterID {
		return domain.ErrNotHost
	}
	return s.roomRepo.Deactivate(ctx, roomID)
}
