package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/mossy-p/watchparty/internal/metrics"
	"github.com/mossy-p/watchparty/internal/models"
	"github.com/mossy-p/watchparty/internal/rooms"
	"github.com/rs/zerolog"

	pkglog "github.com/mossy-p/watchparty/internal/log"
)

var errEmptyPayload = errors.New("empty payload")

// RoomMirror receives a copy of every room after it changes.
type RoomMirror interface {
	Store(room models.Room)
	Remove(id string)
}

type noopMirror struct{}

func (noopMirror) Store(models.Room) {}
func (noopMirror) Remove(string)     {}

type eventHandler func(c Conn, data json.RawMessage) string

// Protocol turns inbound socket events into room mutations and outbound
// frames. It is the only writer of room state and, like the registry it
// wraps, must be driven from one goroutine.
type Protocol struct {
	rooms   *rooms.Registry
	groups  Broadcaster
	mirror  RoomMirror
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time

	handlers map[string]eventHandler
}

type ProtocolOption func(*Protocol)

func WithMirror(m RoomMirror) ProtocolOption {
	return func(p *Protocol) {
		if m != nil {
			p.mirror = m
		}
	}
}

func WithMetrics(m *metrics.Metrics) ProtocolOption {
	return func(p *Protocol) { p.metrics = m }
}

func WithLogger(l zerolog.Logger) ProtocolOption {
	return func(p *Protocol) { p.log = l }
}

// WithNow replaces the clock used for broadcast timestamps.
func WithNow(now func() time.Time) ProtocolOption {
	return func(p *Protocol) { p.now = now }
}

func NewProtocol(registry *rooms.Registry, groups Broadcaster, opts ...ProtocolOption) *Protocol {
	p := &Protocol{
		rooms:  registry,
		groups: groups,
		mirror: noopMirror{},
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.handlers = map[string]eventHandler{
		models.EventCreateRoom:      p.handleCreateRoom,
		models.EventJoinRoom:        p.handleJoinRoom,
		models.EventChatMessage:     p.handleChatMessage,
		models.EventSyncPlayback:    p.handleSyncPlayback,
		models.EventPlaybackControl: p.handlePlaybackControl,
	}
	return p
}

// Dispatch runs the handler for one event to completion. A panicking
// handler is logged and swallowed so other rooms keep working.
func (p *Protocol) Dispatch(c Conn, env models.Envelope) {
	handler, ok := p.handlers[env.Event]
	if !ok {
		p.log.Warn().Str(pkglog.FieldConnID, c.ID()).Str(pkglog.FieldEvent, env.Event).Msg("unknown event")
		p.metrics.Event("unknown", metrics.OutcomeUnknown)
		return
	}

	outcome := metrics.OutcomePanic
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().
				Str(pkglog.FieldConnID, c.ID()).
				Str(pkglog.FieldEvent, env.Event).
				Interface("panic", rec).
				Msg("event handler panicked")
		}
		p.metrics.Event(env.Event, outcome)
	}()

	outcome = handler(c, env.Data)
	p.log.Debug().
		Str(pkglog.FieldConnID, c.ID()).
		Str(pkglog.FieldEvent, env.Event).
		Str("outcome", outcome).
		Msg("event handled")
}

func (p *Protocol) handleCreateRoom(c Conn, data json.RawMessage) string {
	var req models.CreateRoomRequest
	if err := decode(data, &req); err != nil && !errors.Is(err, errEmptyPayload) {
		return p.malformed(c, models.EventCreateRoom, err)
	}

	room, err := p.rooms.Create(rooms.CreateParams{
		Host:     req.User,
		VideoURL: req.CurrentVideoURL,
		Playlist: req.PlaylistItems(),
	})
	if err != nil {
		p.log.Error().Err(err).Str(pkglog.FieldConnID, c.ID()).Msg("failed to create room")
		return metrics.OutcomeFailed
	}
	p.metrics.SetRooms(p.rooms.Len())

	if req.User != "" {
		p.groups.Join(room.ID, c)
	}
	p.echo(c, models.EventRoomCreated, models.RoomCreated{Room: room})
	p.mirror.Store(room.Clone())

	p.log.Info().
		Str(pkglog.FieldRoomID, room.ID).
		Str(pkglog.FieldConnID, c.ID()).
		Str("host", req.User).
		Msg("room created")
	return metrics.OutcomeOK
}

func (p *Protocol) handleJoinRoom(c Conn, data json.RawMessage) string {
	var req models.JoinRoomRequest
	if err := decode(data, &req); err != nil {
		return p.malformed(c, models.EventJoinRoom, err)
	}
	if req.RoomID == "" {
		return p.malformed(c, models.EventJoinRoom, errors.New("missing roomId"))
	}

	p.groups.Join(req.RoomID, c)

	room, ok := p.rooms.Find(req.RoomID)
	if ok {
		room.Touch(p.now())
		if req.User != "" && room.AddViewer(req.User) {
			p.toRoomExceptSender(room.ID, c, models.EventUserJoined, models.UserJoined{
				User:  req.User,
				Users: room.Users,
			})
			// Late joiners start from the room's current position.
			p.echo(c, models.EventSyncPlayback, models.PlaybackSync{
				CurrentTime: room.CurrentTime,
				IsPlaying:   room.IsPlaying,
				Timestamp:   p.timestamp(),
			})
			p.mirror.Store(room.Clone())

			p.log.Info().
				Str(pkglog.FieldRoomID, room.ID).
				Str(pkglog.FieldConnID, c.ID()).
				Str("user", req.User).
				Msg("user joined room")
		}
	}

	// Always answered, with null when the room does not exist.
	p.echo(c, models.EventRoomData, room)

	if !ok {
		return metrics.OutcomeNoRoom
	}
	return metrics.OutcomeOK
}

// handleChatMessage relays without looking at room state, so it works for
// any group the sender names, live room or not.
func (p *Protocol) handleChatMessage(c Conn, data json.RawMessage) string {
	var req models.ChatMessageRequest
	if err := decode(data, &req); err != nil {
		return p.malformed(c, models.EventChatMessage, err)
	}
	if req.RoomID == "" {
		return p.malformed(c, models.EventChatMessage, errors.New("missing roomId"))
	}

	if room, ok := p.rooms.Find(req.RoomID); ok {
		room.Touch(p.now())
	}
	p.toRoomExceptSender(req.RoomID, c, models.EventChatMessage, models.ChatMessage{Message: req.Message})
	return metrics.OutcomeOK
}

func (p *Protocol) handleSyncPlayback(c Conn, data json.RawMessage) string {
	var req models.SyncPlaybackRequest
	if err := decode(data, &req); err != nil {
		return p.malformed(c, models.EventSyncPlayback, err)
	}
	if req.RoomID == "" || req.CurrentTime == nil || req.IsPlaying == nil {
		return p.malformed(c, models.EventSyncPlayback, errors.New("roomId, currentTime and isPlaying are required"))
	}

	room, ok := p.rooms.Find(req.RoomID)
	if !ok {
		return metrics.OutcomeNoRoom
	}
	if err := room.SyncPlayback(*req.CurrentTime, *req.IsPlaying); err != nil {
		return p.malformed(c, models.EventSyncPlayback, err)
	}
	room.Touch(p.now())

	p.toRoomExceptSender(room.ID, c, models.EventSyncPlayback, models.PlaybackSync{
		CurrentTime: room.CurrentTime,
		IsPlaying:   room.IsPlaying,
		Timestamp:   p.timestamp(),
	})
	p.mirror.Store(room.Clone())
	return metrics.OutcomeOK
}

func (p *Protocol) handlePlaybackControl(c Conn, data json.RawMessage) string {
	var req models.PlaybackControlRequest
	if err := decode(data, &req); err != nil {
		return p.malformed(c, models.EventPlaybackControl, err)
	}
	if req.RoomID == "" || req.CurrentTime == nil {
		return p.malformed(c, models.EventPlaybackControl, errors.New("roomId and currentTime are required"))
	}

	room, ok := p.rooms.Find(req.RoomID)
	if !ok {
		return metrics.OutcomeNoRoom
	}
	if err := room.ApplyControl(req.Action, *req.CurrentTime); err != nil {
		return p.malformed(c, models.EventPlaybackControl, err)
	}
	room.Touch(p.now())

	p.toRoomExceptSender(room.ID, c, models.EventPlaybackControl, models.PlaybackControl{
		Action:      req.Action,
		CurrentTime: *req.CurrentTime,
		Timestamp:   p.timestamp(),
	})
	p.mirror.Store(room.Clone())
	return metrics.OutcomeOK
}

// Reap evicts rooms idle for at least idle with nobody left in their group.
func (p *Protocol) Reap(idle time.Duration) []string {
	evicted := p.rooms.Evict(idle, func(id string) bool {
		return p.groups.Size(id) > 0
	})
	for _, id := range evicted {
		p.mirror.Remove(id)
		p.log.Info().Str(pkglog.FieldRoomID, id).Msg("evicted idle room")
	}
	p.metrics.RoomsEvictedAdd(len(evicted))
	p.metrics.SetRooms(p.rooms.Len())
	return evicted
}

// Snapshot returns a copy of a live room.
func (p *Protocol) Snapshot(id string) (models.Room, bool) {
	room, ok := p.rooms.Find(id)
	if !ok {
		return models.Room{}, false
	}
	return room.Clone(), true
}

func (p *Protocol) malformed(c Conn, event string, err error) string {
	p.log.Warn().
		Err(err).
		Str(pkglog.FieldConnID, c.ID()).
		Str(pkglog.FieldEvent, event).
		Msg("ignoring malformed payload")
	return metrics.OutcomeMalformed
}

func (p *Protocol) timestamp() int64 {
	return p.now().UnixMilli()
}

func decode(data json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errEmptyPayload
	}
	return json.Unmarshal(trimmed, v)
}
