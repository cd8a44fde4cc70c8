package logic

import "testing"

func defaultBounds() AdmissionBounds {
	s := DefaultSettings()
	return s.Admission()
}

func TestQualifies(t *testing.T) {
	b := defaultBounds()
	near := Target{Detected: true, DistanceCm: 120, Energy: 60}
	far := Target{Detected: true, DistanceCm: 450, Energy: 60}

	tests := []struct {
		name string
		r    PresenceReading
		want bool
	}{
		{"nothing", PresenceReading{}, false},
		{"moving in band", PresenceReading{PresenceDetected: true, Moving: near}, true},
		{"stationary in band", PresenceReading{PresenceDetected: true, Stationary: near}, true},
		{"only far targets", PresenceReading{PresenceDetected: true, Moving: far, Stationary: far}, false},
		{"far moving, near stationary", PresenceReading{PresenceDetected: true, Moving: far, Stationary: near}, true},
		{"target without presence flag", PresenceReading{Moving: near}, false},
		{"presence without detected target", PresenceReading{PresenceDetected: true, Moving: Target{DistanceCm: 100, Energy: 50}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Qualifies(tt.r, b); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTargetBoundsInclusive(t *testing.T) {
	b := TargetBounds{MinDistanceCm: 50, MaxDistanceCm: 100, MinEnergy: 10, MaxEnergy: 20}
	tests := []struct {
		target Target
		want   bool
	}{
		{Target{Detected: true, DistanceCm: 50, Energy: 10}, true},
		{Target{Detected: true, DistanceCm: 100, Energy: 20}, true},
		{Target{Detected: true, DistanceCm: 49, Energy: 15}, false},
		{Target{Detected: true, DistanceCm: 101, Energy: 15}, false},
		{Target{Detected: true, DistanceCm: 75, Energy: 9}, false},
		{Target{Detected: true, DistanceCm: 75, Energy: 21}, false},
	}
	for _, tt := range tests {
		if got := b.Admits(tt.target); got != tt.want {
			t.Errorf("%+v: expected %v, got %v", tt.target, tt.want, got)
		}
	}
}

func TestQualifiesIsPure(t *testing.T) {
	r := PresenceReading{
		PresenceDetected: true,
		Moving:           Target{Detected: true, DistanceCm: 200, Energy: 40},
	}
	b := defaultBounds()
	first := Qualifies(r, b)
	for i := 0; i < 10; i++ {
		if Qualifies(r, b) != first {
			t.Fatal("same input gave a different result")
		}
	}

	// Moving a bound that the reading does not straddle keeps the result.
	b.Moving.MaxDistanceCm = 250
	b.Moving.MinEnergy = 30
	b.Stationary.MinDistanceCm = 500
	if Qualifies(r, b) != first {
		t.Error("changing unrelated bounds changed the result")
	}

	b.Moving.MaxDistanceCm = 150
	if Qualifies(r, b) {
		t.Error("reading outside the narrowed band should not qualify")
	}
}
