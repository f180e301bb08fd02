package sweep

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"time"
)

// Publisher delivers a processed sweep to the downstream odometry
// consumer. Implementations must not block the sweep worker for long;
// the UDP publisher drops frames rather than stall.
type Publisher interface {
	Publish(sw *Sweep, feats *Features, summary MotionSummary) error
}

// LogPublisher logs one line per sweep. Useful standalone and as the
// default when no downstream consumer is configured.
type LogPublisher struct{}

// Publish logs the sweep's feature counts and motion.
func (LogPublisher) Publish(sw *Sweep, feats *Features, summary MotionSummary) error {
	log.Printf("sweep %s: %d points (%d degraded), %d sharp / %d less-sharp / %d flat / %d less-flat, shift %.3fm, compensated=%t",
		sw.ID, sw.Size(), summary.DegradedPoints,
		len(feats.Sharp), len(feats.LessSharp), len(feats.Flat), len(feats.LessFlat),
		summary.Shift.Norm(), summary.Compensated)
	return nil
}

// MultiPublisher fans a sweep out to several publishers, returning the
// first error after attempting all of them.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(sw *Sweep, feats *Features, summary MotionSummary) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(sw, feats, summary); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Wire framing for the UDP feature publisher.
const (
	frameMagic   = 0x53574650 // "SWFP"
	frameVersion = 1

	pointRecordSize = 3*4 + 4 + 1 + 1 + 1 // xyz float32, reltime us uint32, ring, intensity, label
)

// UDPPublisher sends each sweep's feature subsets as length-prefixed
// binary datagrams. Each subset is framed separately so a datagram
// stays well under typical MTU limits for default caps; oversized
// subsets are split across frames.
type UDPPublisher struct {
	conn    *net.UDPConn
	address string
	// MaxPointsPerFrame bounds datagram size (default 120 points,
	// ~1.7 KB with header).
	MaxPointsPerFrame int
}

// NewUDPPublisher creates a publisher sending to addr:port.
func NewUDPPublisher(addr string, port int) (*UDPPublisher, error) {
	address := fmt.Sprintf("%s:%d", addr, port)
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve publish address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish connection: %w", err)
	}
	return &UDPPublisher{conn: conn, address: address, MaxPointsPerFrame: 120}, nil
}

// Publish encodes and sends the four feature subsets.
func (p *UDPPublisher) Publish(sw *Sweep, feats *Features, summary MotionSummary) error {
	subsets := []struct {
		label  FeatureLabel
		points []ScanPoint
	}{
		{LabelSharp, feats.Sharp},
		{LabelLessSharp, feats.LessSharp},
		{LabelFlat, feats.Flat},
		{LabelLessFlat, feats.LessFlat},
	}

	for _, subset := range subsets {
		points := subset.points
		for len(points) > 0 {
			n := len(points)
			if n > p.MaxPointsPerFrame {
				n = p.MaxPointsPerFrame
			}
			frame := encodeFrame(sw, summary, subset.label, points[:n])
			if _, err := p.conn.Write(frame); err != nil {
				return fmt.Errorf("failed to publish %s frame for sweep %s: %w", subset.label, sw.ID, err)
			}
			points = points[n:]
		}
	}
	return nil
}

// Close closes the publishing socket.
func (p *UDPPublisher) Close() error {
	return p.conn.Close()
}

// encodeFrame builds one datagram:
//
//	magic(4) version(1) label(1) compensated(1) count(2)
//	sweep id(36, zero-padded UUID string) start unix nanos(8) period nanos(8)
//	then count point records.
func encodeFrame(sw *Sweep, summary MotionSummary, label FeatureLabel, points []ScanPoint) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 61+len(points)*pointRecordSize))

	binary.Write(buf, binary.LittleEndian, uint32(frameMagic))
	buf.WriteByte(frameVersion)
	buf.WriteByte(byte(label))
	compensated := byte(0)
	if summary.Compensated {
		compensated = 1
	}
	buf.WriteByte(compensated)
	binary.Write(buf, binary.LittleEndian, uint16(len(points)))

	var id [36]byte
	copy(id[:], sw.ID)
	buf.Write(id[:])
	binary.Write(buf, binary.LittleEndian, sw.Start.UnixNano())
	binary.Write(buf, binary.LittleEndian, int64(sw.Period))

	for _, pt := range points {
		binary.Write(buf, binary.LittleEndian, float32(pt.Position.X))
		binary.Write(buf, binary.LittleEndian, float32(pt.Position.Y))
		binary.Write(buf, binary.LittleEndian, float32(pt.Position.Z))
		binary.Write(buf, binary.LittleEndian, uint32(pt.RelTime/time.Microsecond))
		buf.WriteByte(byte(pt.Ring))
		buf.WriteByte(pt.Intensity)
		buf.WriteByte(byte(pt.Label))
	}
	return buf.Bytes()
}
