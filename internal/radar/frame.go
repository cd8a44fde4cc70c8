// Package radar decodes the report frames of an LD2410 24GHz presence radar
// and keeps the latest reading for the control loop.
package radar

import (
	"bytes"
	"encoding/binary"

	"github.com/silen72/night-light/internal/logic"
)

var (
	frameHeader = []byte{0xF4, 0xF3, 0xF2, 0xF1}
	frameFooter = []byte{0xF8, 0xF7, 0xF6, 0xF5}
)

const (
	typeEngineering = 0x01
	typeBasic       = 0x02

	dataHead = 0xAA
	dataTail = 0x55

	// type, head, state, moving and stationary target, detection distance,
	// tail, check
	minDataLen = 1 + 1 + 1 + 3 + 3 + 2 + 1 + 1
	// The engineering report is the longest known frame payload.
	maxDataLen = 64

	stateMoving     = 0x01
	stateStationary = 0x02
)

// Report is one decoded target report.
type Report struct {
	State               byte
	Moving              logic.Target
	Stationary          logic.Target
	DetectionDistanceCm uint16
	Engineering         bool
}

// Reading converts the report to the form consumed by the lamp.
func (r Report) Reading() logic.PresenceReading {
	return logic.PresenceReading{
		PresenceDetected: r.State != 0,
		Moving:           r.Moving,
		Stationary:       r.Stationary,
	}
}

// Parser extracts reports from a byte stream. Garbage and incomplete or
// corrupt frames are skipped.
type Parser struct {
	buf     []byte
	dropped int
}

// Dropped returns the number of discarded bytes since creation.
func (p *Parser) Dropped() int { return p.dropped }

// Feed appends data and returns every complete report found.
func (p *Parser) Feed(data []byte) []Report {
	p.buf = append(p.buf, data...)

	var reports []Report
	for {
		i := bytes.Index(p.buf, frameHeader)
		if i < 0 {
			// Keep a possible partial header.
			keep := min(len(p.buf), len(frameHeader)-1)
			p.dropped += len(p.buf) - keep
			p.buf = append(p.buf[:0], p.buf[len(p.buf)-keep:]...)
			return reports
		}
		if i > 0 {
			p.dropped += i
			p.buf = p.buf[i:]
		}
		if len(p.buf) < len(frameHeader)+2 {
			return reports
		}

		n := int(binary.LittleEndian.Uint16(p.buf[4:6]))
		if n < minDataLen || n > maxDataLen {
			p.skip()
			continue
		}
		total := len(frameHeader) + 2 + n + len(frameFooter)
		if len(p.buf) < total {
			return reports
		}
		if !bytes.Equal(p.buf[total-len(frameFooter):total], frameFooter) {
			p.skip()
			continue
		}

		if r, ok := decode(p.buf[6 : 6+n]); ok {
			reports = append(reports, r)
		} else {
			p.dropped += total
		}
		p.buf = p.buf[total:]
	}
}

// skip drops the current header so the search resumes after it.
func (p *Parser) skip() {
	p.dropped += len(frameHeader)
	p.buf = p.buf[len(frameHeader):]
}

func decode(d []byte) (Report, bool) {
	if d[0] != typeBasic && d[0] != typeEngineering {
		return Report{}, false
	}
	if d[1] != dataHead || d[len(d)-2] != dataTail {
		return Report{}, false
	}

	state := d[2]
	r := Report{
		State:       state,
		Engineering: d[0] == typeEngineering,
		Moving: logic.Target{
			Detected:   state&stateMoving != 0,
			DistanceCm: binary.LittleEndian.Uint16(d[3:5]),
			Energy:     d[5],
		},
		Stationary: logic.Target{
			Detected:   state&stateStationary != 0,
			DistanceCm: binary.LittleEndian.Uint16(d[6:8]),
			Energy:     d[8],
		},
		DetectionDistanceCm: binary.LittleEndian.Uint16(d[9:11]),
	}
	return r, true
}
