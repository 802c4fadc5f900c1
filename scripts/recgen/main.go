// recgen writes a synthetic record file: flows drawn from a Zipf
// distribution, lengths uniform in a plausible datagram range. Handy for
// exercising the measurement suite without a capture.
package main

import (
	"flag"
	"math/rand/v2"

	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/internal/trace"
	"SketchSpectra/pkg/flowkey"
)

func main() {
	output := flag.String("o", "records.bin", "record file to write")
	numRecords := flag.Int("n", 100000, "number of records")
	numFlows := flag.Int("flows", 1000, "number of distinct flows")
	keyLen := flag.Int("k", flowkey.Len5Tuple, "flowkey length: 4, 8 or 13")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

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

	rng := rand.New(rand.NewPCG(*seed, 0))
	zipf := rand.NewZipf(rng, 1.2, 1, uint64(*numFlows-1))

	keys := make([]flowkey.Key, *numFlows)
	for i := range keys {
		switch *keyLen {
		case flowkey.Len1Tuple:
			keys[i] = flowkey.From1Tuple(rng.Uint32())
		case flowkey.Len2Tuple:
			keys[i] = flowkey.From2Tuple(rng.Uint32(), rng.Uint32())
		default:
			proto := uint8(6)
			if rng.IntN(2) == 0 {
				proto = 17
			}
			keys[i] = flowkey.From5Tuple(rng.Uint32(), rng.Uint32(),
				uint16(rng.IntN(1<<16)), uint16(rng.IntN(1<<16)), proto)
		}
	}

	recs := make([]trace.Record, *numRecords)
	for i := range recs {
		recs[i] = trace.Record{
			Key:       keys[zipf.Uint64()],
			Timestamp: int64(i),
			Length:    int64(40 + rng.IntN(1460)),
		}
	}
	if err := trace.Write(*output, format, recs); err != nil {
		logger.Fatalf("%v", err)
	}
	logger.Infof("Wrote %d records over %d flows to %s.", *numRecords, *numFlows, *output)
}
