package systems

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/events"
)

// DoAfterArgs describes a timed action.
type DoAfterArgs struct {
	User          ecs.Entity // Initiator; its movement cancels the action
	Target        ecs.Entity
	Used          ecs.Entity
	Action        events.ActionID
	Delay         time.Duration
	MoveThreshold float32 // Max user displacement before cancelling
}

type doAfter struct {
	id      events.DoAfterID
	args    DoAfterArgs
	start   components.Position
	elapsed time.Duration
}

type finished struct {
	entry   doAfter
	outcome events.Outcome
}

// DoAfterSystem runs cancelable timed actions on simulation time.
// Each action ends with exactly one DoAfter event raised on its user,
// after the action has been removed from the active set.
type DoAfterSystem struct {
	bus       *events.Bus
	positions Positions

	nextID events.DoAfterID
	active []doAfter // start order
	byUser map[ecs.Entity]events.DoAfterID
}

// NewDoAfterSystem creates a timed-action coordinator.
func NewDoAfterSystem(bus *events.Bus, positions Positions) *DoAfterSystem {
	return &DoAfterSystem{
		bus:       bus,
		positions: positions,
		byUser:    make(map[ecs.Entity]events.DoAfterID),
	}
}

// Start schedules a timed action. A user may have only one pending action.
func (s *DoAfterSystem) Start(args DoAfterArgs) (events.DoAfterID, error) {
	if _, busy := s.byUser[args.User]; busy {
		return 0, ErrDoAfterBusy
	}
	if args.Delay < 0 {
		return 0, fmt.Errorf("do-after %s: negative delay %v", args.Action, args.Delay)
	}
	start, ok := s.positions.Position(args.User)
	if !ok {
		return 0, fmt.Errorf("do-after %s: user has no position", args.Action)
	}

	s.nextID++
	id := s.nextID
	s.active = append(s.active, doAfter{id: id, args: args, start: start})
	s.byUser[args.User] = id

	slog.Debug("do-after started", "id", id, "action", args.Action.String(), "user", args.User.ID(), "delay", args.Delay)
	return id, nil
}

// Cancel aborts a pending action and raises its cancelled event.
// Returns false if id is not pending.
func (s *DoAfterSystem) Cancel(id events.DoAfterID) bool {
	for i := range s.active {
		if s.active[i].id != id {
			continue
		}
		entry := s.active[i]
		s.remove(i)
		s.raise(finished{entry: entry, outcome: events.CancelledExplicitly})
		return true
	}
	return false
}

// Active reports whether id is still pending.
func (s *DoAfterSystem) Active(id events.DoAfterID) bool {
	for i := range s.active {
		if s.active[i].id == id {
			return true
		}
	}
	return false
}

// Pending returns the user's in-flight action, if any.
func (s *DoAfterSystem) Pending(user ecs.Entity) (events.DoAfterID, bool) {
	id, ok := s.byUser[user]
	return id, ok
}

// Count returns the number of pending actions.
func (s *DoAfterSystem) Count() int {
	return len(s.active)
}

// Update advances every pending action by dt.
func (s *DoAfterSystem) Update(dt time.Duration) {
	if len(s.active) == 0 {
		return
	}

	// First pass: decide outcomes (must complete before raising events)
	var done []finished
	kept := s.active[:0]
	for _, entry := range s.active {
		if outcome, over := s.evaluate(&entry, dt); over {
			done = append(done, finished{entry: entry, outcome: outcome})
			delete(s.byUser, entry.args.User)
			continue
		}
		kept = append(kept, entry)
	}
	// Clear the tail so removed entries do not linger in the backing array
	for i := len(kept); i < len(s.active); i++ {
		s.active[i] = doAfter{}
	}
	s.active = kept

	// Second pass: raise events. Handlers may start new actions.
	for _, f := range done {
		s.raise(f)
	}
}

// evaluate checks movement and elapsed time for one entry.
func (s *DoAfterSystem) evaluate(entry *doAfter, dt time.Duration) (events.Outcome, bool) {
	pos, ok := s.positions.Position(entry.args.User)
	if !ok {
		return events.CancelledExplicitly, true
	}
	if entry.start.DistanceTo(pos) > entry.args.MoveThreshold {
		return events.CancelledByMovement, true
	}
	entry.elapsed += dt
	if entry.elapsed >= entry.args.Delay {
		return events.Completed, true
	}
	return events.Completed, false
}

func (s *DoAfterSystem) remove(i int) {
	delete(s.byUser, s.active[i].args.User)
	copy(s.active[i:], s.active[i+1:])
	s.active[len(s.active)-1] = doAfter{}
	s.active = s.active[:len(s.active)-1]
}

func (s *DoAfterSystem) raise(f finished) {
	slog.Debug("do-after finished", "id", f.entry.id, "action", f.entry.args.Action.String(), "outcome", f.outcome.String())
	s.bus.Raise(f.entry.args.User, &events.DoAfter{
		ID:      f.entry.id,
		Action:  f.entry.args.Action,
		User:    f.entry.args.User,
		Target:  f.entry.args.Target,
		Used:    f.entry.args.Used,
		Elapsed: f.entry.elapsed,
		Outcome: f.outcome,
	})
}
