package components

// String returns the display name for a MobState.
func (m MobState) String() string {
	names := MobStateNames()
	if int(m) < len(names) {
		return names[m]
	}
	return "Unknown"
}

// MobStateNames returns the display names for all mob states.
// The order matches the MobState constants.
func MobStateNames() []string {
	return []string{"Alive", "Critical", "Dead"}
}

// Viable reports whether a host in this state can keep an organism attached.
// Critical hosts remain viable; only death forces a detach.
func (m MobState) Viable() bool {
	return m != MobDead
}
