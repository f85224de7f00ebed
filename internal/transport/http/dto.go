package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type CreateRoomRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
	Password    string `json:"password,omitempty"`
	MaxSpeakers int64  `json:"maxSpeakers,omitempty"`
}

type RoomItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category"`
	IsPrivate    bool      `json:"isPrivate"`
	HostID       string    `json:"hostId"`
	HostUsername string    `json:"hostUsername"`
	MaxSpeakers  int64     `json:"maxSpeakers"`
	CreatedAt    time.Time `json:"createdAt"`
}

type RoomsListResponse struct {
	Items      []RoomItem `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type JoinRoomRequest struct {
	Password string `json:"password,omitempty"`
}

type JoinRoomResponse struct {
	RoomID  string `json:"roomId"`
	Granted bool   `json:"granted"`
}

type WebRTCConfigResponse struct {
	ICEServers []string `json:"iceServers"`
}
