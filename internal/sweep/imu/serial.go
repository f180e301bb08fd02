package imu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"go.bug.st/serial"

	"github.com/kestrel-data/sweepfeatures/internal/spatial"
)

// PortInterface abstracts the IMU serial port so tests can feed
// canned sample lines through a reader.
type PortInterface interface {
	Samples() <-chan Sample
	Monitor(ctx context.Context) error
	Close() error
}

// Port reads inertial sample lines from a serial IMU. The wire format
// is one ASCII line per sample:
//
//	$IMU,<unix_nanos>,<roll_deg>,<pitch_deg>,<yaw_deg>,<ax>,<ay>,<az>
//
// with angles in degrees and accelerations in m/s². Lines that do not
// parse are logged and skipped.
type Port struct {
	serial.Port
	samples chan Sample
}

// NewPort opens the IMU serial port at the given device path.
func NewPort(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	return &Port{port, make(chan Sample)}, nil
}

// Samples returns the channel of parsed inertial samples.
func (p *Port) Samples() <-chan Sample {
	return p.samples
}

// Close closes the serial port.
func (p *Port) Close() error {
	return p.Port.Close()
}

// Monitor reads sample lines from the serial port until the context is
// cancelled, sending parsed samples to the Samples channel.
func (p *Port) Monitor(ctx context.Context) error {
	defer p.Close()
	return monitorLines(ctx, p.Port, p.samples)
}

func monitorLines(ctx context.Context, r io.Reader, out chan<- Sample) error {
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		sample, err := ParseSampleLine(scan.Text())
		if err != nil {
			log.Printf("skipping unparseable IMU line: %v", err)
			continue
		}
		select {
		case out <- sample:
		case <-ctx.Done():
			return nil
		}
	}
	return scan.Err()
}

// ParseSampleLine parses one $IMU wire line into a Sample.
func ParseSampleLine(line string) (Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 8 || fields[0] != "$IMU" {
		return Sample{}, fmt.Errorf("malformed IMU line %q", line)
	}

	vals := make([]float64, 7)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("malformed IMU field %q in %q: %w", f, line, err)
		}
		vals[i] = v
	}

	return Sample{
		Stamp:        time.Unix(0, int64(vals[0])),
		Roll:         spatial.DegToRad(vals[1]),
		Pitch:        spatial.DegToRad(vals[2]),
		Yaw:          spatial.DegToRad(vals[3]),
		Acceleration: r3.Vector{X: vals[4], Y: vals[5], Z: vals[6]},
	}, nil
}

// MockPort feeds samples from an in-memory reader, for tests and
// replay.
type MockPort struct {
	Data        io.Reader
	SamplesChan chan Sample
}

func (m *MockPort) Samples() <-chan Sample {
	return m.SamplesChan
}

func (m *MockPort) Monitor(ctx context.Context) error {
	if err := monitorLines(ctx, m.Data, m.SamplesChan); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (m *MockPort) Close() error {
	return nil
}
