//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"fmt"
)

// ReadPCAPFile is a stub when PCAP support is disabled. Build with
// -tags=pcap to enable capture-file replay.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, parser Parser, sink PointSink, stats PacketStatsInterface, forwarder *PacketForwarder) error {
	return fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP file reading")
}
