package handlers

import (
	"github.com/mossy-p/watchparty/internal/models"

	pkglog "github.com/mossy-p/watchparty/internal/log"
)

// Conn is one logical participant connection as the protocol sees it.
type Conn interface {
	ID() string
	// Send queues a frame without blocking and reports whether it was
	// accepted. Delivery is never confirmed.
	Send(frame []byte) bool
}

// Broadcaster is the multicast grouping the protocol fans out through.
type Broadcaster interface {
	Join(roomID string, c Conn)
	Broadcast(roomID string, except Conn, frame []byte) (delivered, dropped int)
	Size(roomID string) int
}

// Groups maps room ids to the connections that joined them. A connection
// can sit in several groups. Groups is owned by the hub goroutine and has no
// locking.
type Groups struct {
	members map[string]map[string]Conn
	joined  map[string]map[string]struct{}
}

func NewGroups() *Groups {
	return &Groups{
		members: make(map[string]map[string]Conn),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds c to the room's group. Joining twice is a no-op.
func (g *Groups) Join(roomID string, c Conn) {
	peers, ok := g.members[roomID]
	if !ok {
		peers = make(map[string]Conn)
		g.members[roomID] = peers
	}
	peers[c.ID()] = c

	rooms, ok := g.joined[c.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		g.joined[c.ID()] = rooms
	}
	rooms[roomID] = struct{}{}
}

// LeaveAll drops c from every group it joined and returns those room ids.
func (g *Groups) LeaveAll(c Conn) []string {
	rooms := g.joined[c.ID()]
	delete(g.joined, c.ID())

	left := make([]string, 0, len(rooms))
	for roomID := range rooms {
		peers := g.members[roomID]
		delete(peers, c.ID())
		if len(peers) == 0 {
			delete(g.members, roomID)
		}
		left = append(left, roomID)
	}
	return left
}

// Size returns how many connections are in the room's group.
func (g *Groups) Size(roomID string) int {
	return len(g.members[roomID])
}

// Broadcast sends frame to every connection in the group except the given
// one, which may be nil.
func (g *Groups) Broadcast(roomID string, except Conn, frame []byte) (delivered, dropped int) {
	for id, c := range g.members[roomID] {
		if except != nil && id == except.ID() {
			continue
		}
		if c.Send(frame) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}

// Every outbound event takes one of two shapes: an echo straight back to the
// sender, or a fan-out to the rest of the sender's room. When an event needs
// both they are issued as two separate sends.

// echo replies on the originating connection only.
func (p *Protocol) echo(c Conn, event string, payload any) {
	frame, err := models.NewFrame(event, payload)
	if err != nil {
		p.log.Error().Err(err).Str(pkglog.FieldEvent, event).Msg("failed to encode frame")
		return
	}
	if !c.Send(frame) {
		p.log.Warn().Str(pkglog.FieldConnID, c.ID()).Str(pkglog.FieldEvent, event).Msg("send buffer full, dropping frame")
		p.metrics.FramesDroppedAdd(1)
	}
}

// toRoomExceptSender fans out to every connection in the room's group
// other than the sender.
func (p *Protocol) toRoomExceptSender(roomID string, sender Conn, event string, payload any) {
	frame, err := models.NewFrame(event, payload)
	if err != nil {
		p.log.Error().Err(err).Str(pkglog.FieldEvent, event).Msg("failed to encode frame")
		return
	}
	_, dropped := p.groups.Broadcast(roomID, sender, frame)
	if dropped > 0 {
		p.log.Warn().
			Str(pkglog.FieldRoomID, roomID).
			Str(pkglog.FieldEvent, event).
			Int("dropped", dropped).
			Msg("send buffers full, dropped frames")
		p.metrics.FramesDroppedAdd(dropped)
	}
}
