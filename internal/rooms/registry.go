package rooms

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/mossy-p/watchparty/internal/models"
)

const (
	codeLength  = 8
	codeChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxAttempts = 16
)

// ErrIDSpaceExhausted is returned when no unused room code turned up
// within the retry budget.
var ErrIDSpaceExhausted = errors.New("could not allocate an unused room id")

// CreateParams are the optional inputs to Create.
type CreateParams struct {
	Host     string
	VideoURL string
	Playlist []models.PlaylistItem
}

// Registry owns every live room. It has no locking; callers must confine
// it to a single goroutine.
type Registry struct {
	rooms   map[string]*models.Room
	newCode func() (string, error)
	now     func() time.Time
}

type Option func(*Registry)

// WithCodeGenerator replaces the random room code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newCode = gen }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:   make(map[string]*models.Room),
		newCode: generateRoomCode,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a fresh id and stores a new paused room.
func (r *Registry) Create(p CreateParams) (*models.Room, error) {
	id, err := r.allocateID()
	if err != nil {
		return nil, err
	}

	room := models.NewRoom(id, p.Host, p.VideoURL, p.Playlist, r.now())
	r.rooms[id] = room
	return room, nil
}

func (r *Registry) allocateID() (string, error) {
	for i := 0; i < maxAttempts; i++ {
		id, err := r.newCode()
		if err != nil {
			return "", fmt.Errorf("generate room id: %w", err)
		}
		if _, taken := r.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

// Find looks a room up by id. The second result is false when no such room
// is live.
func (r *Registry) Find(id string) (*models.Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}

// Evict removes every room idle for at least idle whose id is not reported
// as occupied, and returns the removed ids in sorted order. A non-positive
// idle disables eviction.
func (r *Registry) Evict(idle time.Duration, occupied func(id string) bool) []string {
	if idle <= 0 {
		return nil
	}

	now := r.now()
	var evicted []string
	for id, room := range r.rooms {
		if room.IdleFor(now) < idle {
			continue
		}
		if occupied != nil && occupied(id) {
			continue
		}
		delete(r.rooms, id)
		evicted = append(evicted, id)
	}
	sort.Strings(evicted)
	return evicted
}

// generateRoomCode generates a random room code
func generateRoomCode() (string, error) {
	code := make([]byte, codeLength)
	alphabet := big.NewInt(int64(len(codeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}
