// Package parse decodes 40-channel rotating-lidar UDP packets into scan
// points. Each 1262-byte packet carries 10 data blocks of 40 channel
// returns at a shared azimuth, plus a 22-byte tail with motor speed and
// sensor time; an optional 4-byte UDP sequence may follow.
package parse

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/kestrel-data/sweepfeatures/internal/sweep"
)

// Fixed packet framing of the supported sensor.
const (
	PacketSizeStandard = 1262 // without trailing UDP sequence
	PacketSizeSequence = 1266 // with 4-byte sequence suffix
	BlocksPerPacket    = 10
	ChannelsPerBlock   = 40
	BytesPerChannel    = 3 // 2 bytes distance + 1 byte reflectivity
	BlockPreambleSize  = 2 // 0xFFEE marker
	AzimuthSize        = 2
	BlockSize          = BlockPreambleSize + AzimuthSize + ChannelsPerBlock*BytesPerChannel // 124
	TailStart          = BlocksPerPacket * BlockSize                                       // 1240
	TailSize           = 22
	SequenceSize       = 4

	// Physical conversion factors.
	DistanceResolution = 0.004 // meters per LSB
	AzimuthResolution  = 0.01  // degrees per LSB
)

// TimestampMode selects the time base stamped onto parsed points.
type TimestampMode int

const (
	// TimestampModeSystem stamps points with the host reception time.
	// Default: robust against sensors with unsynchronized clocks.
	TimestampModeSystem TimestampMode = iota
	// TimestampModeSensor uses the sensor's own DateTime + microsecond
	// fields from the packet tail.
	TimestampModeSensor
)

// Tail is the decoded 22-byte packet tail.
type Tail struct {
	HighTempFlag uint8
	MotorSpeed   uint16 // RPM
	TimestampUs  uint32 // microsecond part of UTC
	ReturnMode   uint8
	FactoryInfo  uint8
	SensorTime   time.Time // DateTime seconds + TimestampUs
	UDPSequence  uint32
}

// Parser decodes sensor packets into RawPoints using the per-ring
// elevation calibration. Not safe for concurrent use; the listener owns
// one parser.
type Parser struct {
	cal           Calibration
	timestampMode TimestampMode
	lastTail      Tail
	packetCount   int64
}

// NewParser creates a Parser around the given calibration.
func NewParser(cal Calibration) *Parser {
	return &Parser{cal: cal}
}

// SetTimestampMode selects the point time base.
func (p *Parser) SetTimestampMode(mode TimestampMode) {
	p.timestampMode = mode
}

// LastMotorSpeed returns the motor speed (RPM) from the most recently
// parsed packet tail, or 0 before the first packet.
func (p *Parser) LastMotorSpeed() uint16 {
	return p.lastTail.MotorSpeed
}

// ParsePacket decodes one UDP payload into scan points. Returns up to
// 400 points; channels reporting distance 0 (no return) are skipped.
func (p *Parser) ParsePacket(data []byte) ([]sweep.RawPoint, error) {
	p.packetCount++

	var seq uint32
	switch len(data) {
	case PacketSizeStandard:
	case PacketSizeSequence:
		seq = binary.LittleEndian.Uint32(data[len(data)-SequenceSize:])
		data = data[:len(data)-SequenceSize]
	default:
		return nil, fmt.Errorf("invalid packet size: expected %d or %d, got %d",
			PacketSizeStandard, PacketSizeSequence, len(data))
	}

	tail, err := parseTail(data[TailStart:TailStart+TailSize], seq)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tail: %w", err)
	}
	p.lastTail = tail

	stamp := time.Now()
	if p.timestampMode == TimestampModeSensor {
		stamp = tail.SensorTime
	}

	points := make([]sweep.RawPoint, 0, BlocksPerPacket*ChannelsPerBlock)
	for blockIdx := 0; blockIdx < BlocksPerPacket; blockIdx++ {
		offset := blockIdx * BlockSize
		blockPoints, err := p.parseBlock(data[offset:offset+BlockSize], stamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse block %d: %w", blockIdx, err)
		}
		points = append(points, blockPoints...)
	}
	return points, nil
}

// parseBlock decodes one 124-byte data block: preamble, shared azimuth,
// then 40 channel returns.
func (p *Parser) parseBlock(data []byte, stamp time.Time) ([]sweep.RawPoint, error) {
	// 0xFFEE on the wire reads as 0xEEFF little-endian.
	if preamble := binary.LittleEndian.Uint16(data[0:2]); preamble != 0xEEFF {
		return nil, fmt.Errorf("invalid block preamble: expected 0xEEFF, got 0x%04X", preamble)
	}

	baseAzimuth := float64(binary.LittleEndian.Uint16(data[2:4])) * AzimuthResolution

	points := make([]sweep.RawPoint, 0, ChannelsPerBlock)
	offset := BlockPreambleSize + AzimuthSize
	for ch := 0; ch < ChannelsPerBlock; ch++ {
		rawDistance := binary.LittleEndian.Uint16(data[offset : offset+2])
		reflectivity := data[offset+2]
		offset += BytesPerChannel

		// Distance 0 means no laser return on this channel.
		if rawDistance == 0 {
			continue
		}

		ring := p.cal.Rings[ch]
		azimuth := baseAzimuth + ring.AzimuthOffset
		if azimuth < 0 {
			azimuth += 360
		} else if azimuth >= 360 {
			azimuth -= 360
		}
		distance := float64(rawDistance) * DistanceResolution

		points = append(points, sweep.RawPoint{
			Position:   sweep.SphericalToCartesian(distance, azimuth, ring.Elevation),
			Ring:       ch,
			AzimuthDeg: azimuth,
			Intensity:  reflectivity,
			Stamp:      stamp,
		})
	}
	return points, nil
}

// parseTail decodes the 22-byte tail:
// Reserved(5) + HighTempFlag(1) + Reserved(2) + MotorSpeed(2) +
// Timestamp(4) + ReturnMode(1) + FactoryInfo(1) + DateTime(6).
func parseTail(data []byte, seq uint32) (Tail, error) {
	if len(data) != TailSize {
		return Tail{}, fmt.Errorf("invalid tail size: expected %d, got %d", TailSize, len(data))
	}

	tail := Tail{
		HighTempFlag: data[5],
		MotorSpeed:   binary.LittleEndian.Uint16(data[8:10]),
		TimestampUs:  binary.LittleEndian.Uint32(data[10:14]),
		ReturnMode:   data[14],
		FactoryInfo:  data[15],
		UDPSequence:  seq,
	}

	// DateTime: [year-2000, month, day, hour, minute, second].
	tail.SensorTime = time.Date(
		int(data[16])+2000, time.Month(data[17]), int(data[18]),
		int(data[19]), int(data[20]), int(data[21]),
		int(tail.TimestampUs)*1000, time.UTC)

	return tail, nil
}
