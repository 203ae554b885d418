package edit

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/geo"
	"github.com/sitefit/server/internal/implant"
)

// Session holds one client's edit state: the committed footprint, the
// envelope it must stay inside, and the in-flight gesture if any.
// Sessions are not safe for concurrent use; the websocket read loop
// serializes events per connection, matching the single-gesture model.
type Session struct {
	ID        string
	UserID    int64
	Envelope  *implant.Envelope
	Committed orb.Polygon
	CreatedAt time.Time
	UpdatedAt time.Time

	action *Action
}

// PointerDown starts a gesture on the committed footprint. A pointer-down
// while a gesture is active replaces it; the host input system is
// expected to pair downs and ups, this is just containment of a bad
// client.
func (s *Session) PointerDown(target Target, pointer orb.Point) bool {
	s.action = BeginGesture(target, pointer, s.Committed)
	s.UpdatedAt = time.Now()
	return s.action != nil
}

// PointerMove applies the active gesture and commits the candidate only
// if it stays inside the envelope. Out-of-bounds candidates are dropped
// silently and the committed footprint is left untouched, so the shape
// never snaps back at gesture end.
func (s *Session) PointerMove(pointer orb.Point) orb.Polygon {
	if s.action == nil {
		return s.Committed
	}

	candidate := ApplyGesture(s.action, pointer)
	if candidate == nil {
		return s.Committed
	}
	if s.Envelope != nil && !geo.ContainsPolygon(s.Envelope.Polygon, candidate) {
		return s.Committed
	}

	s.Committed = candidate
	s.UpdatedAt = time.Now()
	return s.Committed
}

// PointerUp ends the gesture. The committed footprint already reflects
// the last valid frame, so there is nothing to finalize.
func (s *Session) PointerUp() {
	s.action = nil
	s.UpdatedAt = time.Now()
}

// Active reports whether a gesture is in flight.
func (s *Session) Active() bool {
	return s.action != nil
}

// Mode returns the active gesture mode, or ModeNone between gestures.
func (s *Session) Mode() Mode {
	if s.action == nil {
		return ModeNone
	}
	return s.action.Mode
}
