package systems

import (
	"time"

	"github.com/mlange-42/ark/ecs"
)

// Update runs the periodic host status check for every organism.
// Each organism accumulates dt; once past its damage frequency the
// accumulator resets and the host is checked. Dead hosts are dropped,
// living and critical hosts get a discomfort popup.
func (s *BrainSlugSystem) Update(dt time.Duration) {
	for _, e := range s.order {
		o := s.organisms[e]

		o.accumulator += dt
		if o.accumulator <= o.timing.DamageFrequency {
			continue
		}
		o.accumulator = 0

		host, ok := o.host.Get()
		if !ok {
			continue
		}
		if !s.env.Traits.Exists(host) {
			s.forceDetach(o, CauseHostMissing)
			continue
		}
		if state, ok := s.env.Traits.MobState(host); ok && !state.Viable() {
			s.forceDetach(o, CauseHostDeath)
			continue
		}

		s.env.Popups.Popup(Message{Key: MsgStirring}, Only(host), PopupLargeCaution)
	}
}

// AttachedTo returns the organisms currently latched onto host.
func (s *BrainSlugSystem) AttachedTo(host ecs.Entity) []*Organism {
	var out []*Organism
	for _, e := range s.order {
		if o := s.organisms[e]; o.host.Is(host) {
			out = append(out, o)
		}
	}
	return out
}
