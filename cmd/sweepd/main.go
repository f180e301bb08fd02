// Command sweepd receives rotating-lidar packets over UDP (or replays
// them from a PCAP file), accumulates them into full sweeps, applies
// IMU motion compensation, classifies feature points and publishes the
// results, with an HTTP monitoring surface alongside.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kestrel-data/sweepfeatures/internal/config"
	"github.com/kestrel-data/sweepfeatures/internal/db"
	"github.com/kestrel-data/sweepfeatures/internal/spatial"
	"github.com/kestrel-data/sweepfeatures/internal/sweep"
	"github.com/kestrel-data/sweepfeatures/internal/sweep/imu"
	"github.com/kestrel-data/sweepfeatures/internal/sweep/monitor"
	"github.com/kestrel-data/sweepfeatures/internal/sweep/network"
	"github.com/kestrel-data/sweepfeatures/internal/sweep/parse"
)

var (
	listen         = flag.String("listen", ":8081", "HTTP listen address for the monitoring server")
	udpPort        = flag.Int("udp-port", 2368, "UDP port to listen for lidar packets")
	udpAddress     = flag.String("udp-addr", "", "UDP bind address (default: listen on all interfaces)")
	configFile     = flag.String("config", "", "Path to JSON registration parameter file (default: built-in defaults)")
	dbFile         = flag.String("db", "sweep_data.db", "Path to the SQLite database file (empty to disable persistence)")
	disableParse   = flag.Bool("disable-parse", false, "Receive and count packets without parsing them into points")
	sensorClock    = flag.Bool("sensor-clock", false, "Stamp points with the sensor's own clock instead of host reception time")
	forwardPackets = flag.Bool("forward", false, "Forward received UDP packets to another port")
	forwardPort    = flag.Int("forward-port", 2368, "Port to forward UDP packets to (for LidarView monitoring)")
	forwardAddr    = flag.String("forward-addr", "localhost", "Address to forward UDP packets to")
	publishAddr    = flag.String("publish-addr", "", "Address to publish feature frames to over UDP (empty to log summaries instead)")
	publishPort    = flag.Int("publish-port", 7501, "Port to publish feature frames to")
	pcapFile       = flag.String("pcap-file", "", "Replay packets from a PCAP file instead of listening on UDP")
	imuPort        = flag.String("imu-port", "", "Serial device for the IMU (empty to run without motion compensation input)")
	imuBaud        = flag.Int("imu-baud", 115200, "IMU serial baud rate")
	rcvBuf         = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes (default 4MB)")
	logInterval    = flag.Int("log-interval", 2, "Statistics logging interval in seconds")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	params := config.DefaultParams()
	if *configFile != "" {
		var err error
		params, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configFile, err)
		}
		log.Printf("Loaded registration parameters from %s", *configFile)
	}

	history, err := imu.NewHistory(params.IMUHistorySize)
	if err != nil {
		log.Fatalf("Failed to create inertial history: %v", err)
	}

	// A static mount rotation in the config resolves immediately; without
	// one there is nothing to look up and compensation stays off.
	var mount *sweep.MountResolver
	if roll, pitch, yaw, ok := params.MountRotation(); ok {
		q := spatial.FromEulerAngles(spatial.DegToRad(roll), spatial.DegToRad(pitch), spatial.DegToRad(yaw))
		mount = sweep.NewMountResolver(sweep.StaticMountLookup(q))
	} else {
		log.Println("No mount rotation configured; compensating with inertial states assumed lidar-aligned")
	}

	stats := sweep.NewPacketStats()

	var store *sweep.Store
	if *dbFile != "" {
		database, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database %s: %v", *dbFile, err)
		}
		defer database.Close()
		store = sweep.NewStore(database)
	} else {
		log.Println("Persistence disabled (empty -db path)")
	}

	latest := &monitor.LatestSweep{}
	publishers := sweep.MultiPublisher{latest}
	if *publishAddr != "" {
		udpPub, err := sweep.NewUDPPublisher(*publishAddr, *publishPort)
		if err != nil {
			log.Fatalf("Failed to create UDP publisher: %v", err)
		}
		defer udpPub.Close()
		publishers = append(publishers, udpPub)
		log.Printf("Publishing feature frames to %s:%d", *publishAddr, *publishPort)
	} else {
		publishers = append(publishers, sweep.LogPublisher{})
	}

	var pipelineStore sweep.SummaryStore
	if store != nil {
		pipelineStore = store
	}
	pipeline, err := sweep.NewPipeline(sweep.PipelineConfig{
		Params:    params,
		History:   history,
		Mount:     mount,
		Stats:     stats,
		Publisher: publishers,
		Store:     pipelineStore,
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	var parser network.Parser
	if *disableParse {
		log.Println("Packet parsing disabled (-disable-parse)")
	} else {
		log.Println("Loading embedded sensor calibration")
		cal, err := parse.LoadCalibration()
		if err != nil {
			log.Fatalf("Failed to load sensor calibration: %v", err)
		}
		if err := cal.Validate(); err != nil {
			log.Fatalf("Invalid sensor calibration: %v", err)
		}
		p := parse.NewParser(cal)
		if *sensorClock {
			p.SetTimestampMode(parse.TimestampModeSensor)
		}
		parser = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mount != nil {
		if err := mount.Resolve(ctx); err != nil {
			log.Printf("Mount resolution: %v", err)
		}
	}

	var forwarder *network.PacketForwarder
	if *forwardPackets {
		forwarder, err = network.NewPacketForwarder(*forwardAddr, *forwardPort, stats, time.Duration(*logInterval)*time.Second)
		if err != nil {
			log.Fatalf("Failed to create packet forwarder: %v", err)
		}
		defer forwarder.Close()
		log.Printf("Forwarding packets to %s:%d", *forwardAddr, *forwardPort)
	}

	var wg sync.WaitGroup

	// Sweep worker: compensation, classification, publish, store.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Pipeline error: %v", err)
		}
		log.Print("Sweep worker terminated")
	}()

	// Inertial sample path: serial port into integrator into history.
	if *imuPort != "" {
		port, err := imu.NewPort(*imuPort, *imuBaud)
		if err != nil {
			log.Fatalf("Failed to open IMU port %s: %v", *imuPort, err)
		}
		var rotation imu.RotationSource
		if mount != nil {
			rotation = mount
		}
		integrator := imu.NewIntegrator(history, rotation)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := port.Monitor(ctx); err != nil {
				log.Printf("IMU monitor error: %v", err)
			}
			log.Print("IMU monitor terminated")
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case sample, ok := <-port.Samples():
					if !ok {
						return
					}
					integrator.HandleSample(sample)
				}
			}
		}()
		log.Printf("Reading IMU samples from %s at %d baud", *imuPort, *imuBaud)
	} else {
		log.Println("No IMU port configured; inertial history will stay empty")
	}

	// Packet path: live UDP socket or PCAP replay.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if *pcapFile != "" {
			log.Printf("Replaying packets from %s", *pcapFile)
			if err := network.ReadPCAPFile(ctx, *pcapFile, *udpPort, parser, pipeline, stats, forwarder); err != nil {
				log.Printf("PCAP replay error: %v", err)
			}
			// Replay ends before a sweep boundary; flush the remainder
			// and bring the whole process down.
			pipeline.Flush()
			stop()
			log.Print("PCAP replay terminated")
			return
		}

		udpListenAddr := fmt.Sprintf("%s:%d", *udpAddress, *udpPort)
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:        udpListenAddr,
			RcvBuf:         *rcvBuf,
			LogInterval:    time.Duration(*logInterval) * time.Second,
			Stats:          stats,
			Forwarder:      forwarder,
			Parser:         parser,
			Sink:           pipeline,
			DisableParsing: *disableParse,
		})
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("UDP listener error: %v", err)
		}
		log.Print("UDP listener terminated")
	}()

	// HTTP monitoring server.
	webServer := monitor.NewWebServer(monitor.WebServerConfig{
		Address: *listen,
		Params:  params,
		Stats:   stats,
		Store:   store,
		Mount:   mount,
		Latest:  latest,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webServer.Start(ctx); err != nil {
			log.Printf("Web server error: %v", err)
		}
	}()

	wg.Wait()
	log.Print("Graceful shutdown complete")
}
