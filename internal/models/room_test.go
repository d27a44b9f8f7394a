package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom(t *testing.T) {
	now := time.Unix(1700000000, 0)

	r := NewRoom("ABCD1234", "alice", "https://v.example/1", []PlaylistItem{{Title: "One", URL: "https://v.example/1"}}, now)
	assert.Equal(t, []User{{Username: "alice", Role: RoleHost}}, r.Users)
	assert.Zero(t, r.CurrentTime)
	assert.False(t, r.IsPlaying)
	assert.Len(t, r.Playlist, 1)
	assert.Equal(t, now, r.LastActivity)

	empty := NewRoom("ZZZZ0000", "", "", nil, now)
	raw, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"ZZZZ0000","users":[],"current_video_url":"","playlist":[],"current_time":0,"is_playing":false}`, string(raw))
}

func TestAddViewerIsIdempotent(t *testing.T) {
	r := NewRoom("R", "alice", "", nil, time.Now())

	assert.True(t, r.AddViewer("bob"))
	assert.False(t, r.AddViewer("bob"))
	assert.False(t, r.AddViewer("alice"))

	assert.Equal(t, []User{
		{Username: "alice", Role: RoleHost},
		{Username: "bob", Role: RoleViewer},
	}, r.Users)
}

func TestSyncPlaybackLastWriteWins(t *testing.T) {
	r := NewRoom("R", "", "", nil, time.Now())

	require.NoError(t, r.SyncPlayback(10, true))
	require.NoError(t, r.SyncPlayback(3.5, false))
	assert.Equal(t, 3.5, r.CurrentTime)
	assert.False(t, r.IsPlaying)

	assert.ErrorIs(t, r.SyncPlayback(-1, true), ErrInvalidTime)
	assert.ErrorIs(t, r.SyncPlayback(math.Inf(1), true), ErrInvalidTime)
	assert.Equal(t, 3.5, r.CurrentTime)
}

func TestApplyControl(t *testing.T) {
	r := NewRoom("R", "", "", nil, time.Now())

	require.NoError(t, r.ApplyControl(ActionPlay, 42.5))
	assert.True(t, r.IsPlaying)
	assert.Equal(t, 42.5, r.CurrentTime)

	require.NoError(t, r.ApplyControl(ActionSeek, 100))
	assert.True(t, r.IsPlaying, "seek must not change the playing flag")
	assert.Equal(t, 100.0, r.CurrentTime)

	require.NoError(t, r.ApplyControl(ActionPause, 101))
	assert.False(t, r.IsPlaying)

	require.NoError(t, r.ApplyControl(ActionSeek, 5))
	assert.False(t, r.IsPlaying)
	assert.Equal(t, 5.0, r.CurrentTime)

	assert.ErrorIs(t, r.ApplyControl("rewind", 1), ErrUnknownAction)
	assert.ErrorIs(t, r.ApplyControl(ActionPlay, -3), ErrInvalidTime)
	assert.Equal(t, 5.0, r.CurrentTime)
	assert.False(t, r.IsPlaying)
}

func TestCloneIsDeep(t *testing.T) {
	r := NewRoom("R", "alice", "", []PlaylistItem{{Title: "a", URL: "u"}}, time.Now())
	c := r.Clone()

	r.AddViewer("bob")
	r.Playlist[0].Title = "changed"

	assert.Len(t, c.Users, 1)
	assert.Equal(t, "a", c.Playlist[0].Title)
}

func TestIdleFor(t *testing.T) {
	start := time.Unix(0, 0)
	r := NewRoom("R", "", "", nil, start)
	r.Touch(start.Add(time.Minute))
	assert.Equal(t, 4*time.Minute, r.IdleFor(start.Add(5*time.Minute)))
}
