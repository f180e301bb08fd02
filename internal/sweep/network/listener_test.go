package network

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/kestrel-data/sweepfeatures/internal/sweep"
)

type fakeStats struct {
	packets int
	bytes   int
	points  int
	dropped int
}

func (s *fakeStats) AddPacket(b int)     { s.packets++; s.bytes += b }
func (s *fakeStats) AddDropped()         { s.dropped++ }
func (s *fakeStats) AddPoints(c int)     { s.points += c }
func (s *fakeStats) LogStats(parse bool) {}

type fakeParser struct {
	points []sweep.RawPoint
	err    error
	calls  int
}

func (p *fakeParser) ParsePacket(packet []byte) ([]sweep.RawPoint, error) {
	p.calls++
	return p.points, p.err
}

func (p *fakeParser) LastMotorSpeed() uint16 { return 600 }

type fakeSink struct {
	batches [][]sweep.RawPoint
}

func (s *fakeSink) AddPoints(points []sweep.RawPoint) {
	s.batches = append(s.batches, points)
}

func TestHandlePacketFeedsSink(t *testing.T) {
	stats := &fakeStats{}
	sink := &fakeSink{}
	parser := &fakeParser{points: []sweep.RawPoint{
		{Position: r3.Vector{Y: 5}, Ring: 2, AzimuthDeg: 10},
		{Position: r3.Vector{Y: 6}, Ring: 3, AzimuthDeg: 10},
	}}

	l := NewUDPListener(UDPListenerConfig{
		Stats:  stats,
		Parser: parser,
		Sink:   sink,
	})

	if err := l.HandlePacket(make([]byte, 1262)); err != nil {
		t.Fatalf("HandlePacket: %v", err)
	}
	if stats.packets != 1 || stats.bytes != 1262 {
		t.Errorf("stats: %d packets / %d bytes, want 1 / 1262", stats.packets, stats.bytes)
	}
	if stats.points != 2 {
		t.Errorf("stats: %d points, want 2", stats.points)
	}
	if len(sink.batches) != 1 || len(sink.batches[0]) != 2 {
		t.Fatalf("sink got %d batches, want 1 batch of 2 points", len(sink.batches))
	}
}

func TestHandlePacketSwallowsParseErrors(t *testing.T) {
	sink := &fakeSink{}
	parser := &fakeParser{err: errors.New("corrupt preamble")}

	l := NewUDPListener(UDPListenerConfig{Parser: parser, Sink: sink})

	if err := l.HandlePacket(make([]byte, 100)); err != nil {
		t.Fatalf("parse failure must not propagate, got %v", err)
	}
	if len(sink.batches) != 0 {
		t.Fatalf("sink received points from a failed parse")
	}
}

func TestHandlePacketDisabledParsing(t *testing.T) {
	stats := &fakeStats{}
	parser := &fakeParser{points: []sweep.RawPoint{{Ring: 1}}}

	l := NewUDPListener(UDPListenerConfig{
		Stats:          stats,
		Parser:         parser,
		DisableParsing: true,
	})

	if err := l.HandlePacket(make([]byte, 1262)); err != nil {
		t.Fatalf("HandlePacket: %v", err)
	}
	if parser.calls != 0 {
		t.Fatalf("parser invoked %d times with parsing disabled", parser.calls)
	}
	if stats.packets != 1 {
		t.Fatalf("packet not counted with parsing disabled")
	}
}

func TestNewUDPListenerDefaultsStats(t *testing.T) {
	l := NewUDPListener(UDPListenerConfig{})
	// Must not panic on the packet path without a stats collector.
	if err := l.HandlePacket([]byte{1, 2, 3}); err != nil {
		t.Fatalf("HandlePacket: %v", err)
	}
}
