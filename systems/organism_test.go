package systems

import (
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
)

func TestContainment_Exclusive(t *testing.T) {
	w := ecs.NewWorld()
	names := ecs.NewMap[components.Name](w)
	slug := names.NewEntity(&components.Name{Value: "slug"})
	other := names.NewEntity(&components.Name{Value: "other"})
	host := names.NewEntity(&components.Name{Value: "host"})

	var c Containment
	if !c.Insert(slug, host, "mask") {
		t.Fatal("first insert should succeed")
	}
	if c.Insert(other, host, "mask") {
		t.Error("second insert should fail while occupied")
	}

	gotHost, slot, ok := c.Remove()
	if !ok || gotHost != host || slot != "mask" {
		t.Errorf("Remove = (%v, %q, %v)", gotHost, slot, ok)
	}
	if _, _, ok := c.Remove(); ok {
		t.Error("second Remove should report empty")
	}
	if c.Occupied() {
		t.Error("containment should be empty")
	}
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t, 1)
	slug := env.spawnSlug("brain_slug")

	if _, err := env.sys.Register(slug, "brain_slug"); err == nil {
		t.Error("registering twice should fail")
	}
	other := env.spawn("other", 0, 0)
	if _, err := env.sys.Register(other, "no_such_thing"); err == nil {
		t.Error("unknown archetype should fail")
	}
}

func TestUnregister_DetachesAndRevokes(t *testing.T) {
	env := newTestEnv(t, 1)
	slug := env.spawnSlug("brain_slug")
	host := env.spawnHost("alice", 1, 0)
	attachByThrow(t, env, slug, host)

	env.sys.Unregister(slug)

	if env.sys.Organism(slug) != nil {
		t.Error("organism should be gone")
	}
	if _, ok := env.SlotItem(host, "mask"); ok {
		t.Error("slot should be emptied on unregister")
	}
	if len(env.grantedSet(slug)) != 0 {
		t.Error("all actions should be revoked")
	}
	if len(env.sys.Organisms()) != 0 {
		t.Error("organism list should be empty")
	}
}

func TestRecordKindNames(t *testing.T) {
	if RecordDeath.String() != "death" {
		t.Errorf("RecordDeath = %q", RecordDeath.String())
	}
	if RecordKind(200).String() != "unknown" {
		t.Error("out of range kind should be unknown")
	}
}
