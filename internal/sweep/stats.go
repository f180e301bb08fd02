package sweep

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// PacketStats tracks ingest counters with thread-safe operations. The
// listener and pipeline goroutines update it; a logging goroutine
// drains it periodically via LogStats.
type PacketStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	droppedCount int64
	pointCount   int64
	sweepCount   int64
	lastReset    time.Time
}

// NewPacketStats creates a PacketStats instance.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

// AddPacket records one received packet of the given size.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddDropped records a packet dropped on the forwarding path.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// AddPoints records parsed points.
func (ps *PacketStats) AddPoints(count int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.pointCount += int64(count)
}

// AddSweep records a completed sweep.
func (ps *PacketStats) AddSweep() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.sweepCount++
}

// GetAndReset returns the current counters and resets them.
func (ps *PacketStats) GetAndReset() (packets, bytes, dropped, points, sweeps int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets, bytes = ps.packetCount, ps.byteCount
	dropped, points = ps.droppedCount, ps.pointCount
	sweeps = ps.sweepCount

	ps.packetCount, ps.byteCount = 0, 0
	ps.droppedCount, ps.pointCount = 0, 0
	ps.sweepCount = 0
	ps.lastReset = now
	return
}

// LogStats logs one line of per-second rates since the last reset.
// Quiet when nothing arrived, so an idle sensor doesn't spam the log.
func (ps *PacketStats) LogStats(parsePackets bool) {
	packets, bytes, dropped, points, sweeps, duration := ps.GetAndReset()
	if packets == 0 && dropped == 0 {
		return
	}

	packetsPerSec := float64(packets) / duration.Seconds()
	mbPerSec := float64(bytes) / duration.Seconds() / (1024 * 1024)

	logMsg := fmt.Sprintf("Sweep stats (/sec): %.2f MB, %.1f packets", mbPerSec, packetsPerSec)
	if parsePackets && points > 0 {
		pointsPerSec := float64(points) / duration.Seconds()
		logMsg += fmt.Sprintf(", %s points", FormatWithCommas(int64(pointsPerSec)))
	}
	if sweeps > 0 {
		logMsg += fmt.Sprintf(", %d sweeps", sweeps)
	}
	if dropped > 0 {
		logMsg += fmt.Sprintf(", %d dropped on forward", dropped)
	}
	log.Print(logMsg)
}

// FormatWithCommas formats a number with thousands separators.
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}
	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
