// Package network receives sensor packets over UDP (or replays them
// from a capture file) and feeds the parsed points into the sweep
// accumulator, with optional raw-packet forwarding to a secondary
// consumer.
package network

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/kestrel-data/sweepfeatures/internal/sweep"
)

// PacketStatsInterface receives ingest counter updates.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDropped()
	AddPoints(count int)
	LogStats(parsePackets bool)
}

// Parser decodes one UDP payload into scan points.
type Parser interface {
	ParsePacket(packet []byte) ([]sweep.RawPoint, error)
	LastMotorSpeed() uint16
}

// PointSink receives parsed points; the sweep accumulator implements it.
type PointSink interface {
	AddPoints(points []sweep.RawPoint)
}

// UDPListener receives sensor packets from a UDP socket and runs them
// through the parser into the point sink.
type UDPListener struct {
	address        string
	rcvBuf         int
	logInterval    time.Duration
	conn           *net.UDPConn
	stats          PacketStatsInterface
	forwarder      *PacketForwarder
	parser         Parser
	sink           PointSink
	disableParsing bool
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address        string
	RcvBuf         int
	LogInterval    time.Duration
	Stats          PacketStatsInterface
	Forwarder      *PacketForwarder
	Parser         Parser
	Sink           PointSink
	DisableParsing bool
}

// NewUDPListener creates a UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	// No-op stats when none supplied keeps the packet path free of nil
	// checks.
	stats := config.Stats
	if stats == nil {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	return &UDPListener{
		address:        config.Address,
		rcvBuf:         config.RcvBuf,
		logInterval:    logInterval,
		stats:          stats,
		forwarder:      config.Forwarder,
		parser:         config.Parser,
		sink:           config.Sink,
		disableParsing: config.DisableParsing,
	}
}

// noopStats is a safe default when no stats collector is provided.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int)        {}
func (n *noopStats) AddDropped()                {}
func (n *noopStats) AddPoints(count int)        {}
func (n *noopStats) LogStats(parsePackets bool) {}

// Start begins listening for UDP packets and processing them. It blocks
// until the context is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		log.Printf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
	}

	log.Printf("UDP listener started on %s with receive buffer %d bytes", l.address, l.rcvBuf)

	if l.forwarder != nil {
		l.forwarder.Start(ctx)
	}

	go l.startStatsLogging(ctx)

	// Sensor packets are 1262 or 1266 bytes; leave margin.
	buffer := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			log.Print("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Short read deadline so context cancellation is noticed.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			if err := l.HandlePacket(buffer[:n]); err != nil {
				log.Printf("Error handling packet from %v: %v", addr, err)
			}
		}
	}
}

// startStatsLogging reports ingest rates shortly after startup, then on
// the configured interval.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats(!l.disableParsing)
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats(!l.disableParsing)
		}
	}
}

// HandlePacket processes a single received UDP payload: stats, optional
// forward, parse, hand points to the sink. Parse failures are logged
// and swallowed so one corrupt packet never stalls the stream.
func (l *UDPListener) HandlePacket(packet []byte) error {
	l.stats.AddPacket(len(packet))

	if l.forwarder != nil {
		l.forwarder.ForwardAsync(packet)
	}

	if l.parser == nil || l.disableParsing {
		return nil
	}

	points, err := l.parser.ParsePacket(packet)
	if err != nil {
		log.Printf("packet parsing failed: %v", err)
		return nil
	}
	l.stats.AddPoints(len(points))

	if l.sink != nil && len(points) > 0 {
		l.sink.AddPoints(points)
	}
	return nil
}

// Close closes the UDP socket.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
