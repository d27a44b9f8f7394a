package models

import (
	"errors"
	"math"
	"time"
)

// Role is informational only; nothing is gated on it.
type Role string

const (
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

// PlaybackAction is a discrete transport change requested by a participant.
type PlaybackAction string

const (
	ActionPlay  PlaybackAction = "play"
	ActionPause PlaybackAction = "pause"
	ActionSeek  PlaybackAction = "seek"
)

var (
	ErrUnknownAction = errors.New("unknown playback action")
	ErrInvalidTime   = errors.New("playback time must be a finite non-negative number")
)

// Valid reports whether the action is one the room state machine understands.
func (a PlaybackAction) Valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionSeek:
		return true
	}
	return false
}

type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type PlaylistItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Room is the shared state of one watch party: who is in it and where
// playback is. It is not safe for concurrent use; a single owner applies
// every mutation.
type Room struct {
	ID              string         `json:"id"`
	Users           []User         `json:"users"`
	CurrentVideoURL string         `json:"current_video_url"`
	Playlist        []PlaylistItem `json:"playlist"`
	CurrentTime     float64        `json:"current_time"`
	IsPlaying       bool           `json:"is_playing"`

	CreatedAt    time.Time `json:"-"`
	LastActivity time.Time `json:"-"`
}

// NewRoom returns a paused room at position zero. A non-empty host is added
// as the first member.
func NewRoom(id, host, videoURL string, playlist []PlaylistItem, now time.Time) *Room {
	r := &Room{
		ID:              id,
		Users:           []User{},
		CurrentVideoURL: videoURL,
		Playlist:        []PlaylistItem{},
		CreatedAt:       now,
		LastActivity:    now,
	}
	if host != "" {
		r.Users = append(r.Users, User{Username: host, Role: RoleHost})
	}
	r.Playlist = append(r.Playlist, playlist...)
	return r
}

// HasUser reports whether username is already on the roster.
func (r *Room) HasUser(username string) bool {
	for _, u := range r.Users {
		if u.Username == username {
			return true
		}
	}
	return false
}

// AddViewer appends username as a viewer. It returns false, leaving the
// roster untouched, when the name is already present.
func (r *Room) AddViewer(username string) bool {
	if r.HasUser(username) {
		return false
	}
	r.Users = append(r.Users, User{Username: username, Role: RoleViewer})
	return true
}

// SyncPlayback overwrites the playback state. Last write wins.
func (r *Room) SyncPlayback(currentTime float64, playing bool) error {
	if !validTime(currentTime) {
		return ErrInvalidTime
	}
	r.CurrentTime = currentTime
	r.IsPlaying = playing
	return nil
}

// ApplyControl applies a play, pause or seek. Seek moves the position and
// leaves the playing flag alone.
func (r *Room) ApplyControl(action PlaybackAction, currentTime float64) error {
	if !action.Valid() {
		return ErrUnknownAction
	}
	if !validTime(currentTime) {
		return ErrInvalidTime
	}

	switch action {
	case ActionPlay:
		r.IsPlaying = true
	case ActionPause:
		r.IsPlaying = false
	}
	r.CurrentTime = currentTime
	return nil
}

// Touch records activity for idle eviction.
func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}

// IdleFor returns how long the room has gone without activity.
func (r *Room) IdleFor(now time.Time) time.Duration {
	return now.Sub(r.LastActivity)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *Room) Clone() Room {
	c := *r
	c.Users = append([]User(nil), r.Users...)
	c.Playlist = append([]PlaylistItem(nil), r.Playlist...)
	if c.Users == nil {
		c.Users = []User{}
	}
	if c.Playlist == nil {
		c.Playlist = []PlaylistItem{}
	}
	return c
}

func validTime(t float64) bool {
	return t >= 0 && !math.IsInf(t, 0) && !math.IsNaN(t)
}
