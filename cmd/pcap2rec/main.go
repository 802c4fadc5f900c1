// pcap2rec converts a pcap capture into the fixed-size record format the
// measurement suite consumes: flowkey, 8-byte timestamp in microseconds and
// a 2-byte datagram length. With -publish the records are streamed to a
// NATS subject instead of (or in addition to) the output file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/internal/trace"
	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/util"
)

func main() {
	input := flag.String("r", "", "pcap file to read")
	output := flag.String("o", "", "record file to write")
	keyLen := flag.Int("k", flowkey.Len5Tuple, "flowkey length: 4, 8 or 13")
	publish := flag.String("publish", "", "NATS server URL to publish records to")
	subject := flag.String("subject", "records", "NATS subject")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -r <pcap> [-o <records>] [-k 4|8|13] [-publish <url>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	logger.SetVerbose(*verbose)

	if *input == "" || (*output == "" && *publish == "") {
		flag.Usage()
		os.Exit(1)
	}
	if !flowkey.ValidLen(*keyLen) {
		logger.Fatalf("Flowkey length must be 4, 8 or 13, got %d.", *keyLen)
	}

	format, err := trace.NewDataFormat([][]interface{}{
		{"flowkey", "timestamp", "length"},
		{*keyLen, 8, 2},
	})
	if err != nil {
		logger.Fatalf("%v", err)
	}

	handle, err := pcap.OpenOffline(*input)
	if err != nil {
		logger.Fatalf("Failed to open pcap file %s: %v", *input, err)
	}
	defer handle.Close()

	var pub *trace.Publisher
	if *publish != "" {
		pub, err = trace.NewPublisher(*publish, *subject, format)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defer pub.Close()
	}

	var recs []trace.Record
	skipped := 0
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range source.Packets() {
		rec, ok := parsePacket(packet, *keyLen)
		if !ok {
			skipped++
			continue
		}
		if pub != nil {
			if err := pub.Publish(&rec); err != nil {
				logger.Errorf("Publish failed: %v", err)
			}
		}
		recs = append(recs, rec)
	}
	if skipped > 0 {
		logger.Warningf("Skipped %d non-IPv4 packets.", skipped)
	}

	if *output != "" {
		if err := trace.Write(*output, format, recs); err != nil {
			logger.Fatalf("%v", err)
		}
	}
	logger.Infof("Converted %d packets from %s.", len(recs), *input)
}

// parsePacket extracts one record from a decoded packet. Packets without an
// IPv4 layer are skipped.
func parsePacket(packet gopacket.Packet, keyLen int) (trace.Record, bool) {
	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return trace.Record{}, false
	}
	ip := ipLayer.(*layers.IPv4)

	// Addresses and ports travel in network order inside the key, so the
	// raw big-endian reads stay as they are on the wire.
	srcIP := util.Net2Host32(beUint32(ip.SrcIP.To4()))
	dstIP := util.Net2Host32(beUint32(ip.DstIP.To4()))

	var srcPort, dstPort uint16
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		srcPort, dstPort = util.Net2Host16(uint16(tcp.SrcPort)), util.Net2Host16(uint16(tcp.DstPort))
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		srcPort, dstPort = util.Net2Host16(uint16(udp.SrcPort)), util.Net2Host16(uint16(udp.DstPort))
	}

	var key flowkey.Key
	switch keyLen {
	case flowkey.Len1Tuple:
		key = flowkey.From1Tuple(srcIP)
	case flowkey.Len2Tuple:
		key = flowkey.From2Tuple(srcIP, dstIP)
	default:
		key = flowkey.From5Tuple(srcIP, dstIP, srcPort, dstPort, uint8(ip.Protocol))
	}

	meta := packet.Metadata()
	return trace.Record{
		Key:       key,
		Timestamp: meta.Timestamp.UnixMicro(),
		Length:    int64(ip.Length),
	}, true
}

func beUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
