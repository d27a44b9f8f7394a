package models

import (
	"encoding/json"
)

// Event names exchanged over the socket, in both directions.
const (
	EventCreateRoom      = "create-room"
	EventRoomCreated     = "room-created"
	EventJoinRoom        = "join-room"
	EventUserJoined      = "user-joined"
	EventRoomData        = "room-data"
	EventChatMessage     = "chat-message"
	EventSyncPlayback    = "sync-playback"
	EventPlaybackControl = "playback-control"
)

// Envelope is a single socket frame: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes an outbound event. A nil payload is sent as null.
func NewFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Inbound payloads. Pointer fields distinguish missing values from zero.

type CreateRoomRequest struct {
	User            string          `json:"user"`
	CurrentVideoURL string          `json:"current_video_url"`
	Playlist        json.RawMessage `json:"playlist"`
}

// PlaylistItems decodes the playlist, treating anything that is not a list
// of items as an empty playlist.
func (r CreateRoomRequest) PlaylistItems() []PlaylistItem {
	var items []PlaylistItem
	if len(r.Playlist) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Playlist, &items); err != nil {
		return nil
	}
	return items
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
	User   string `json:"user"`
}

type ChatMessageRequest struct {
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

type SyncPlaybackRequest struct {
	RoomID      string   `json:"roomId"`
	CurrentTime *float64 `json:"currentTime"`
	IsPlaying   *bool    `json:"isPlaying"`
}

type PlaybackControlRequest struct {
	RoomID      string         `json:"roomId"`
	Action      PlaybackAction `json:"action"`
	CurrentTime *float64       `json:"currentTime"`
}

// Outbound payloads.

type RoomCreated struct {
	Room *Room `json:"room"`
}

type UserJoined struct {
	User  string `json:"user"`
	Users []User `json:"users"`
}

type ChatMessage struct {
	Message json.RawMessage `json:"message"`
}

// PlaybackSync carries the server wall clock in Unix milliseconds so
// receivers can compensate for latency.
type PlaybackSync struct {
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
	Timestamp   int64   `json:"timestamp"`
}

type PlaybackControl struct {
	Action      PlaybackAction `json:"action"`
	CurrentTime float64        `json:"currentTime"`
	Timestamp   int64          `json:"timestamp"`
}
