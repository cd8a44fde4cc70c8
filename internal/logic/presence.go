package logic

// TargetBounds is the admission band for one kind of radar target.
type TargetBounds struct {
	MinDistanceCm uint16
	MaxDistanceCm uint16
	MinEnergy     uint8
	MaxEnergy     uint8
}

// Admits reports whether the target is detected and inside the band.
func (b TargetBounds) Admits(t Target) bool {
	return t.Detected &&
		t.DistanceCm >= b.MinDistanceCm && t.DistanceCm <= b.MaxDistanceCm &&
		t.Energy >= b.MinEnergy && t.Energy <= b.MaxEnergy
}

// AdmissionBounds holds the bands for moving and stationary targets.
type AdmissionBounds struct {
	Moving     TargetBounds
	Stationary TargetBounds
}

// Qualifies reports whether a reading counts as presence for the night light.
// Either target kind inside its band is enough.
func Qualifies(r PresenceReading, b AdmissionBounds) bool {
	return r.PresenceDetected && (b.Moving.Admits(r.Moving) || b.Stationary.Admits(r.Stationary))
}
