package radar

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// basicFrame builds a target report frame.
func basicFrame(state byte, movDist uint16, movEnergy byte, statDist uint16, statEnergy byte) []byte {
	data := []byte{typeBasic, dataHead, state}
	data = binary.LittleEndian.AppendUint16(data, movDist)
	data = append(data, movEnergy)
	data = binary.LittleEndian.AppendUint16(data, statDist)
	data = append(data, statEnergy)
	data = binary.LittleEndian.AppendUint16(data, max(movDist, statDist))
	data = append(data, dataTail, 0x00)

	frame := append([]byte{}, frameHeader...)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(data)))
	frame = append(frame, data...)
	return append(frame, frameFooter...)
}

func TestParserBasicFrame(t *testing.T) {
	var p Parser
	reports := p.Feed(basicFrame(0x03, 120, 55, 80, 40))
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]
	if !r.Moving.Detected || r.Moving.DistanceCm != 120 || r.Moving.Energy != 55 {
		t.Errorf("unexpected moving target %+v", r.Moving)
	}
	if !r.Stationary.Detected || r.Stationary.DistanceCm != 80 || r.Stationary.Energy != 40 {
		t.Errorf("unexpected stationary target %+v", r.Stationary)
	}
	if r.DetectionDistanceCm != 120 {
		t.Errorf("expected detection distance 120, got %d", r.DetectionDistanceCm)
	}
	if !r.Reading().PresenceDetected {
		t.Error("expected presence")
	}
}

func TestParserStateBits(t *testing.T) {
	tests := []struct {
		state            byte
		moving, stat, pr bool
	}{
		{0x00, false, false, false},
		{0x01, true, false, true},
		{0x02, false, true, true},
		{0x03, true, true, true},
	}
	for _, tt := range tests {
		var p Parser
		r := p.Feed(basicFrame(tt.state, 100, 10, 100, 10))[0]
		if r.Moving.Detected != tt.moving || r.Stationary.Detected != tt.stat || r.Reading().PresenceDetected != tt.pr {
			t.Errorf("state %#x: got moving=%v stationary=%v presence=%v", tt.state, r.Moving.Detected, r.Stationary.Detected, r.Reading().PresenceDetected)
		}
	}
}

func TestParserSplitAndGarbage(t *testing.T) {
	var p Parser
	stream := append([]byte{0x00, 0x13, 0xF4, 0xF3}, basicFrame(0x01, 50, 20, 0, 0)...)
	stream = append(stream, basicFrame(0x02, 0, 0, 70, 30)...)

	var reports []Report
	for i := 0; i < len(stream); i += 5 {
		end := min(i+5, len(stream))
		reports = append(reports, p.Feed(stream[i:end])...)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Moving.DistanceCm != 50 || reports[1].Stationary.DistanceCm != 70 {
		t.Errorf("unexpected reports %+v", reports)
	}
	if p.Dropped() != 4 {
		t.Errorf("expected 4 dropped bytes, got %d", p.Dropped())
	}
}

func TestParserCorruptFooter(t *testing.T) {
	var p Parser
	bad := basicFrame(0x01, 50, 20, 0, 0)
	bad[len(bad)-1] = 0x00
	good := basicFrame(0x02, 0, 0, 90, 30)

	reports := p.Feed(append(bad, good...))
	if len(reports) != 1 {
		t.Fatalf("expected only the good report, got %d", len(reports))
	}
	if reports[0].Stationary.DistanceCm != 90 {
		t.Errorf("unexpected report %+v", reports[0])
	}
}

func TestParserBadLength(t *testing.T) {
	var p Parser
	frame := basicFrame(0x01, 50, 20, 0, 0)
	frame[4] = 0xFF
	if reports := p.Feed(frame); len(reports) != 0 {
		t.Errorf("expected no reports, got %d", len(reports))
	}
}

// pipePort feeds chunks to Run and then blocks until closed.
type pipePort struct {
	chunks chan []byte
	once   sync.Once
	closed chan struct{}
}

func newPipePort() *pipePort {
	return &pipePort{chunks: make(chan []byte, 16), closed: make(chan struct{})}
}

func (p *pipePort) Read(b []byte) (int, error) {
	select {
	case c := <-p.chunks:
		return copy(b, c), nil
	case <-p.closed:
		return 0, errors.New("port closed")
	case <-time.After(10 * time.Millisecond):
		return 0, io.EOF
	}
}

func (p *pipePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func TestSourceStoresLatestAndGoesStale(t *testing.T) {
	port := newPipePort()
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	src := NewSource(port, 2*time.Second, clock, zerolog.Nop())

	if src.Reading().PresenceDetected {
		t.Fatal("no reading expected before the first report")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	port.chunks <- basicFrame(0x01, 100, 60, 0, 0)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if reports, _ := src.Stats(); reports == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("report not stored")
		}
		time.Sleep(5 * time.Millisecond)
	}

	r := src.Reading()
	if !r.PresenceDetected || r.Moving.DistanceCm != 100 {
		t.Errorf("unexpected reading %+v", r)
	}

	mu.Lock()
	now = now.Add(3 * time.Second)
	mu.Unlock()
	if src.Reading().PresenceDetected {
		t.Error("stale reading should report no presence")
	}

	cancel()
	src.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestFakeSensor(t *testing.T) {
	var f FakeSensor
	if f.Reading().PresenceDetected {
		t.Error("expected empty reading")
	}
	var p Parser
	f.Set(p.Feed(basicFrame(0x02, 0, 0, 50, 50))[0].Reading())
	if !f.Reading().Stationary.Detected {
		t.Error("expected stationary target")
	}
}
