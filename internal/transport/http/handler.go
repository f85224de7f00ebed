package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Aklilu27/audiorooms/internal/domain"
	"github.com/Aklilu27/audiorooms/internal/postgres"
	"github.com/Aklilu27/audiorooms/internal/presence"
	"github.com/Aklilu27/audiorooms/internal/service"
	"github.com/Aklilu27/audiorooms/pkg/auth"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	roomSvc    *service.RoomService
	gate       *presence.AccessGate
	iceServers []string
}

func NewHandler(room *service.RoomService, gate *presence.AccessGate, iceServers []string) *Handler {
	return &Handler{roomSvc: room, gate: gate, iceServers: iceServers}
}

// GET /api/webrtc/config hands clients the STUN/TURN addresses; the
// server never dials them itself.
func (h *Handler) WebRTCConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, WebRTCConfigResponse{ICEServers: h.iceServers})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func roomItem(room *domain.Room) RoomItem {
	return RoomItem{
		ID:           room.ID,
		Title:        room.Title,
		Description:  room.Description,
		Category:     room.Category,
		IsPrivate:    room.IsPrivate,
		HostID:       room.HostID,
		HostUsername: room.HostUsername,
		MaxSpeakers:  room.MaxSpeakers,
		CreatedAt:    room.CreatedAt,
	}
}

// POST /api/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), id.UserID, id.Username, service.CreateRoomParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		IsPrivate:   req.IsPrivate,
		Password:    req.Password,
		MaxSpeakers: req.MaxSpeakers,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	// the creator can always enter their own room
	h.gate.Grant(room.ID, id.UserID)

	writeJSON(w, http.StatusCreated, roomItem(room))
}

// GET /api/rooms?limit=&cursor=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	rooms, next, err := h.roomSvc.ListRooms(r.Context(), limit, cursor)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms)), NextCursor: next}
	for i := range rooms {
		resp.Items = append(resp.Items, roomItem(&rooms[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomSvc.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, roomItem(room))
}

// POST /api/rooms/{id}/join verifies the room password and records an
// access grant. The actual membership change happens over the socket.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	roomID := chi.URLParam(r, "id")

	var req JoinRoomRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // body optional for public rooms
	}

	room, err := h.roomSvc.CheckPassword(r.Context(), roomID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
		case errors.Is(err, domain.ErrPasswordRequired):
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "room password required"})
		case errors.Is(err, domain.ErrInvalidPassword):
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "invalid room password"})
		default:
			slog.Error("handler.JoinRoom:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return
	}

	h.gate.Grant(room.ID, id.UserID)
	writeJSON(w, http.StatusOK, JoinRoomResponse{RoomID: room.ID, Granted: true})
}

// DELETE /api/rooms/{id}
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	roomID := chi.URLParam(r, "id")

	if err := h.roomSvc.DeleteRoom(r.Context(), roomID, id.UserID); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
		case errors.Is(err, domain.ErrNotHost):
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "only the host can delete the room"})
		default:
			slog.Error("handler.DeleteRoom:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return
	}

	// grants die with the room
	h.gate.Clear(roomID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
