package rooms

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/mossy-p/watchparty/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateRoomCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestCreateAndFind(t *testing.T) {
	reg := NewRegistry()

	room, err := reg.Create(CreateParams{
		Host:     "alice",
		VideoURL: "https://v.example/a",
		Playlist: []models.PlaylistItem{{Title: "a", URL: "https://v.example/a"}},
	})
	require.NoError(t, err)
	assert.Regexp(t, codePattern, room.ID)
	assert.Equal(t, []models.User{{Username: "alice", Role: models.RoleHost}}, room.Users)
	assert.Zero(t, room.CurrentTime)
	assert.False(t, room.IsPlaying)

	found, ok := reg.Find(room.ID)
	require.True(t, ok)
	assert.Same(t, room, found)

	_, ok = reg.Find("NOPE0000")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestCreateWithoutHost(t *testing.T) {
	reg := NewRegistry()

	room, err := reg.Create(CreateParams{})
	require.NoError(t, err)
	assert.Empty(t, room.Users)
	assert.Empty(t, room.CurrentVideoURL)
	assert.NotNil(t, room.Playlist)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	reg := NewRegistry(WithCodeGenerator(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}))

	first, err := reg.Create(CreateParams{})
	require.NoError(t, err)
	second, err := reg.Create(CreateParams{})
	require.NoError(t, err)

	assert.Equal(t, "AAAAAAAA", first.ID)
	assert.Equal(t, "BBBBBBBB", second.ID)
	assert.Equal(t, 2, reg.Len())
}

func TestCreateGivesUpWhenIDSpaceIsExhausted(t *testing.T) {
	reg := NewRegistry(WithCodeGenerator(func() (string, error) { return "SAMESAME", nil }))

	_, err := reg.Create(CreateParams{})
	require.NoError(t, err)

	_, err = reg.Create(CreateParams{})
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
	assert.Equal(t, 1, reg.Len())
}

func TestCreatePropagatesGeneratorError(t *testing.T) {
	boom := errors.New("entropy unavailable")
	reg := NewRegistry(WithCodeGenerator(func() (string, error) { return "", boom }))

	_, err := reg.Create(CreateParams{})
	assert.ErrorIs(t, err, boom)
}

func TestEvict(t *testing.T) {
	now := time.Unix(1700000000, 0)
	reg := NewRegistry(WithClock(func() time.Time { return now }))

	stale, _ := reg.Create(CreateParams{})
	occupied, _ := reg.Create(CreateParams{})
	now = now.Add(2 * time.Hour)
	fresh, _ := reg.Create(CreateParams{})

	evicted := reg.Evict(time.Hour, func(id string) bool { return id == occupied.ID })
	assert.Equal(t, []string{stale.ID}, evicted)

	_, ok := reg.Find(stale.ID)
	assert.False(t, ok)
	_, ok = reg.Find(occupied.ID)
	assert.True(t, ok)
	_, ok = reg.Find(fresh.ID)
	assert.True(t, ok)

	assert.Nil(t, reg.Evict(0, nil), "zero idle disables eviction")
	assert.Equal(t, 2, reg.Len())
}
