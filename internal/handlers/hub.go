package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/mossy-p/watchparty/internal/metrics"
	"github.com/mossy-p/watchparty/internal/models"
	"github.com/mossy-p/watchparty/internal/rooms"
	"github.com/rs/zerolog"

	pkglog "github.com/mossy-p/watchparty/internal/log"
)

// ErrHubStopped is returned by queries made after the hub loop has exited.
var ErrHubStopped = errors.New("hub stopped")

type HubConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
	Mirror       RoomMirror
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Hub owns the room registry and the multicast groups and processes every
// event on a single goroutine, in arrival order. Handlers run to completion
// one at a time, so room state needs no locking.
type Hub struct {
	protocol *Protocol
	groups   *Groups
	clients  map[string]*Client
	metrics  *metrics.Metrics
	log      zerolog.Logger

	idleTimeout  time.Duration
	reapInterval time.Duration

	tasks chan func()
	done  chan struct{}
}

func NewHub(registry *rooms.Registry, cfg HubConfig) *Hub {
	groups := NewGroups()
	return &Hub{
		protocol: NewProtocol(registry, groups,
			WithMirror(cfg.Mirror),
			WithMetrics(cfg.Metrics),
			WithLogger(cfg.Logger),
		),
		groups:       groups,
		clients:      make(map[string]*Client),
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
		idleTimeout:  cfg.IdleTimeout,
		reapInterval: cfg.ReapInterval,
		tasks:        make(chan func(), 256),
		done:         make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var reap <-chan time.Time
	if h.idleTimeout > 0 && h.reapInterval > 0 {
		ticker := time.NewTicker(h.reapInterval)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case task := <-h.tasks:
			task()
		case <-reap:
			h.protocol.Reap(h.idleTimeout)
		case <-ctx.Done():
			for _, c := range h.clients {
				c.close()
			}
			h.log.Info().Int("clients", len(h.clients)).Msg("hub stopped")
			return
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) enqueue(task func()) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.tasks <- task:
		return true
	case <-h.done:
		return false
	}
}

// Register starts tracking a connection.
func (h *Hub) Register(c *Client) bool {
	return h.enqueue(func() {
		h.clients[c.ID()] = c
		h.metrics.SetConnections(len(h.clients))
		h.log.Debug().Str(pkglog.FieldConnID, c.ID()).Msg("client registered")
	})
}

// Unregister removes a connection from every group and closes its send
// channel. The room rosters are left as they are.
func (h *Hub) Unregister(c *Client) {
	h.enqueue(func() {
		if _, ok := h.clients[c.ID()]; !ok {
			return
		}
		left := h.groups.LeaveAll(c)
		delete(h.clients, c.ID())
		c.close()
		h.metrics.SetConnections(len(h.clients))
		h.log.Debug().Str(pkglog.FieldConnID, c.ID()).Strs("rooms", left).Msg("client unregistered")
	})
}

// Submit queues an inbound event from c. Events from one connection keep
// their order relative to its Register and Unregister.
func (h *Hub) Submit(c *Client, env models.Envelope) {
	h.enqueue(func() {
		if _, ok := h.clients[c.ID()]; !ok {
			return
		}
		h.protocol.Dispatch(c, env)
	})
}

// Room returns a snapshot of a live room, read on the hub goroutine.
func (h *Hub) Room(ctx context.Context, id string) (models.Room, bool, error) {
	type result struct {
		room models.Room
		ok   bool
	}
	reply := make(chan result, 1)

	queued := h.enqueue(func() {
		room, ok := h.protocol.Snapshot(id)
		reply <- result{room: room, ok: ok}
	})
	if !queued {
		return models.Room{}, false, ErrHubStopped
	}

	select {
	case r := <-reply:
		return r.room, r.ok, nil
	case <-ctx.Done():
		return models.Room{}, false, ctx.Err()
	case <-h.done:
		return models.Room{}, false, ErrHubStopped
	}
}
