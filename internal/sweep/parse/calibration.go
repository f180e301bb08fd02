package parse

import (
	"embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

//go:embed sensor_configs/*.csv
var embeddedConfigs embed.FS

// RingCalibration holds the angular calibration of one laser channel:
// its fixed elevation and the horizontal offset of its emitter column.
type RingCalibration struct {
	Channel       int     // 1-based channel number
	Elevation     float64 // degrees above horizontal
	AzimuthOffset float64 // degrees relative to the block azimuth
}

// Calibration maps each of the 40 channels (zero-based) to its angles.
type Calibration struct {
	Rings [ChannelsPerBlock]RingCalibration
}

// LoadCalibration reads the embedded per-ring angle table.
func LoadCalibration() (Calibration, error) {
	file, err := embeddedConfigs.Open("sensor_configs/ring_angles.csv")
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to open embedded ring angle file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to read ring angle CSV: %w", err)
	}
	return parseCalibration(records)
}

func parseCalibration(records [][]string) (Calibration, error) {
	var cal Calibration
	if len(records) < 2 {
		return cal, fmt.Errorf("insufficient data in ring angle file")
	}

	header := records[0]
	if len(header) != 3 ||
		strings.ToLower(header[0]) != "channel" ||
		strings.ToLower(header[1]) != "elevation" ||
		strings.ToLower(header[2]) != "azimuth" {
		return cal, fmt.Errorf("invalid header in ring angle file, expected: Channel,Elevation,Azimuth")
	}

	for i, record := range records[1:] {
		line := i + 2
		if len(record) != 3 {
			return cal, fmt.Errorf("invalid record at line %d: expected 3 fields", line)
		}
		channel, err := strconv.Atoi(record[0])
		if err != nil {
			return cal, fmt.Errorf("invalid channel number at line %d: %w", line, err)
		}
		elevation, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return cal, fmt.Errorf("invalid elevation at line %d: %w", line, err)
		}
		azimuth, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return cal, fmt.Errorf("invalid azimuth at line %d: %w", line, err)
		}
		if channel < 1 || channel > ChannelsPerBlock {
			return cal, fmt.Errorf("channel number %d out of range (1-%d) at line %d", channel, ChannelsPerBlock, line)
		}
		cal.Rings[channel-1] = RingCalibration{
			Channel:       channel,
			Elevation:     elevation,
			AzimuthOffset: azimuth,
		}
	}

	if err := cal.Validate(); err != nil {
		return cal, err
	}
	return cal, nil
}

// Validate checks the table covers every channel.
func (c Calibration) Validate() error {
	for i := 0; i < ChannelsPerBlock; i++ {
		if c.Rings[i].Channel == 0 {
			return fmt.Errorf("missing ring calibration for channel %d", i+1)
		}
	}
	return nil
}
