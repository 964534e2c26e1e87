package systems

import (
	"errors"
	"testing"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/events"
)

// doAfterFixture wires a bare coordinator to the test environment and
// captures every DoAfter event raised on user.
type doAfterFixture struct {
	env    *testEnv
	da     *DoAfterSystem
	user   ecs.Entity
	target ecs.Entity
	got    []*events.DoAfter
}

func newDoAfterFixture(t *testing.T) *doAfterFixture {
	t.Helper()
	env := newTestEnv(t, 1)
	f := &doAfterFixture{env: env}
	f.user = env.spawn("user", 0, 0)
	f.target = env.spawn("target", 1, 0)
	env.slugs[f.user] = true
	f.da = NewDoAfterSystem(env.bus, env)
	env.bus.Subscribe(events.TagBrainSlug, events.KindDoAfter, func(_ ecs.Entity, ev events.Event) {
		f.got = append(f.got, ev.(*events.DoAfter))
	})
	return f
}

func (f *doAfterFixture) start(t *testing.T, delay time.Duration) events.DoAfterID {
	t.Helper()
	id, err := f.da.Start(DoAfterArgs{
		User:          f.user,
		Target:        f.target,
		Used:          f.user,
		Action:        events.ActionHijack,
		Delay:         delay,
		MoveThreshold: 0.1,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return id
}

func TestDoAfter_CompletesAfterDelay(t *testing.T) {
	f := newDoAfterFixture(t)
	id := f.start(t, time.Second)

	for i := 0; i < 9; i++ {
		f.da.Update(100 * time.Millisecond)
	}
	if len(f.got) != 0 {
		t.Fatal("completed early")
	}
	f.da.Update(100 * time.Millisecond)

	if len(f.got) != 1 {
		t.Fatalf("events = %d, want 1", len(f.got))
	}
	ev := f.got[0]
	if ev.ID != id || ev.Outcome != events.Completed || ev.Target != f.target {
		t.Errorf("event = %+v", ev)
	}
	if f.da.Active(id) || f.da.Count() != 0 {
		t.Error("completed action should be removed")
	}

	f.da.Update(time.Second)
	if len(f.got) != 1 {
		t.Error("completion must be raised exactly once")
	}
}

func TestDoAfter_UserMovementCancels(t *testing.T) {
	f := newDoAfterFixture(t)
	f.start(t, time.Second)

	f.da.Update(100 * time.Millisecond)
	f.env.pos[f.user] = components.Position{X: 0.5}
	f.da.Update(100 * time.Millisecond)

	if len(f.got) != 1 || f.got[0].Outcome != events.CancelledByMovement {
		t.Fatalf("events = %+v, want one movement cancel", f.got)
	}
}

func TestDoAfter_SmallJitterTolerated(t *testing.T) {
	f := newDoAfterFixture(t)
	f.start(t, 300*time.Millisecond)

	f.env.pos[f.user] = components.Position{X: 0.05}
	for i := 0; i < 3; i++ {
		f.da.Update(100 * time.Millisecond)
	}

	if len(f.got) != 1 || f.got[0].Outcome != events.Completed {
		t.Fatalf("events = %+v, want completion", f.got)
	}
}

func TestDoAfter_TargetMovementIgnored(t *testing.T) {
	f := newDoAfterFixture(t)
	f.start(t, 200*time.Millisecond)

	f.env.pos[f.target] = components.Position{X: 30, Y: 30}
	f.da.Update(100 * time.Millisecond)
	f.da.Update(100 * time.Millisecond)

	if len(f.got) != 1 || f.got[0].Outcome != events.Completed {
		t.Fatalf("events = %+v, want completion", f.got)
	}
}

func TestDoAfter_BusyUser(t *testing.T) {
	f := newDoAfterFixture(t)
	f.start(t, time.Second)

	_, err := f.da.Start(DoAfterArgs{User: f.user, Target: f.target, Action: events.ActionRelease, Delay: time.Second})
	if !errors.Is(err, ErrDoAfterBusy) {
		t.Errorf("second Start = %v, want ErrDoAfterBusy", err)
	}
}

func TestDoAfter_ExplicitCancel(t *testing.T) {
	f := newDoAfterFixture(t)
	id := f.start(t, time.Second)

	if !f.da.Cancel(id) {
		t.Fatal("Cancel should find the pending action")
	}
	if f.da.Cancel(id) {
		t.Error("second Cancel should report nothing pending")
	}
	f.da.Update(2 * time.Second)

	if len(f.got) != 1 || f.got[0].Outcome != events.CancelledExplicitly {
		t.Fatalf("events = %+v, want one explicit cancel", f.got)
	}
	if _, pending := f.da.Pending(f.user); pending {
		t.Error("user should be free to start again")
	}
}

func TestDoAfter_HandlerCanStartNext(t *testing.T) {
	f := newDoAfterFixture(t)
	f.start(t, 100*time.Millisecond)

	var restartErr error
	restarted := false
	f.env.bus.Subscribe(events.TagBrainSlug, events.KindDoAfter, func(_ ecs.Entity, ev events.Event) {
		if restarted {
			return
		}
		restarted = true
		_, restartErr = f.da.Start(DoAfterArgs{User: f.user, Target: f.target, Action: events.ActionRelease, Delay: time.Second, MoveThreshold: 0.1})
	})

	f.da.Update(100 * time.Millisecond)

	if restartErr != nil {
		t.Fatalf("starting from a completion handler failed: %v", restartErr)
	}
	if f.da.Count() != 1 {
		t.Errorf("pending = %d, want the new action", f.da.Count())
	}
}

func TestDoAfter_RemovedUserCancels(t *testing.T) {
	f := newDoAfterFixture(t)
	f.start(t, time.Second)

	delete(f.env.pos, f.user)
	f.da.Update(100 * time.Millisecond)

	if len(f.got) != 1 || !f.got[0].Outcome.Cancelled() {
		t.Fatalf("events = %+v, want a cancel", f.got)
	}
}
