package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mossy-p/watchparty/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	mirrorQueueSize = 1024
	mirrorOpTimeout = 2 * time.Second
)

type mirrorOp struct {
	room   *models.Room
	remove string
}

// RoomMirror writes room snapshots to Redis in the background so other
// tools can see live rooms. It is write-only: the service never reads the
// snapshots back.
//
// Keys:
//
//	<prefix>:room:<id>  JSON snapshot, expires after ttl
//	<prefix>:rooms      set of mirrored room ids
type RoomMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger

	ops  chan mirrorOp
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewRoomMirror(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *RoomMirror {
	m := &RoomMirror{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    logger,
		ops:    make(chan mirrorOp, mirrorQueueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Store queues a snapshot of room. It never blocks; when the queue is full
// the snapshot is dropped and the next mutation will carry the state.
func (m *RoomMirror) Store(room models.Room) {
	m.enqueue(mirrorOp{room: &room})
}

// Remove queues deletion of a room's snapshot.
func (m *RoomMirror) Remove(id string) {
	m.enqueue(mirrorOp{remove: id})
}

func (m *RoomMirror) enqueue(op mirrorOp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.ops <- op:
	default:
		m.log.Warn().Msg("room mirror queue full, dropping update")
	}
}

// Close stops accepting updates and waits for queued ones to be written.
func (m *RoomMirror) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.ops)
	}
	m.mu.Unlock()
	<-m.done
}

func (m *RoomMirror) run() {
	defer close(m.done)
	for op := range m.ops {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorOpTimeout)
		var err error
		if op.room != nil {
			err = m.store(ctx, op.room)
		} else {
			err = m.remove(ctx, op.remove)
		}
		cancel()
		if err != nil {
			m.log.Error().Err(err).Msg("room mirror write failed")
		}
	}
}

func (m *RoomMirror) store(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.roomKey(room.ID), data, m.ttl)
		pipe.SAdd(ctx, m.indexKey(), room.ID)
		return nil
	})
	return err
}

func (m *RoomMirror) remove(ctx context.Context, id string) error {
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.roomKey(id))
		pipe.SRem(ctx, m.indexKey(), id)
		return nil
	})
	return err
}

func (m *RoomMirror) roomKey(id string) string {
	return m.prefix + ":room:" + id
}

func (m *RoomMirror) indexKey() string {
	return m.prefix + ":rooms"
}
