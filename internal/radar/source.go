package radar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"

	"github.com/silen72/night-light/internal/logic"
)

const (
	// DefaultBaud is the factory UART speed of the LD2410.
	DefaultBaud = 256000
	// DefaultStaleAfter is how long a report is trusted without a newer one.
	DefaultStaleAfter = 2 * time.Second
)

// Sensor provides the latest presence reading.
type Sensor interface {
	Reading() logic.PresenceReading
}

// Source reads reports from the radar in its own goroutine and keeps the
// latest one. Reports older than the stale window read as "no presence".
type Source struct {
	port       io.ReadCloser
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger

	mu      sync.Mutex
	latest  Report
	at      time.Time
	reports int
	dropped int
}

// OpenSerial opens the radar UART.
func OpenSerial(device string, baud int, staleAfter time.Duration, log zerolog.Logger) (*Source, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return NewSource(port, staleAfter, time.Now, log), nil
}

// NewSource wraps an already open port.
func NewSource(port io.ReadCloser, staleAfter time.Duration, now func() time.Time, log zerolog.Logger) *Source {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Source{port: port, staleAfter: staleAfter, now: now, log: log}
}

// Run reads the port until ctx is cancelled or the port fails.
// A read timeout with no data is not an error.
func (s *Source) Run(ctx context.Context) error {
	var p Parser
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := s.port.Read(buf)
		if n > 0 {
			reports := p.Feed(buf[:n])
			s.store(reports, p.Dropped())
		}
		if err != nil {
			if errors.Is(err, io.EOF) && n == 0 {
				// tarm/serial reports a read timeout as (0, EOF).
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read radar: %w", err)
		}
	}
}

func (s *Source) store(reports []Report, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dropped != s.dropped {
		s.log.Debug().Int("dropped", dropped-s.dropped).Msg("radar bytes discarded")
		s.dropped = dropped
	}
	if len(reports) == 0 {
		return
	}
	s.latest = reports[len(reports)-1]
	s.at = s.now()
	s.reports += len(reports)
}

// Reading returns the latest report, or an empty reading if it is stale.
func (s *Source) Reading() logic.PresenceReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.at.IsZero() || s.now().Sub(s.at) > s.staleAfter {
		return logic.PresenceReading{}
	}
	return s.latest.Reading()
}

// Stats returns the number of decoded reports and discarded bytes.
func (s *Source) Stats() (reports, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports, s.dropped
}

// Close closes the port, which also ends Run.
func (s *Source) Close() error {
	return s.port.Close()
}
