// Package trace holds the program-level representation of a packet stream:
// records, the declarative on-disk record format, the stream file
// reader/writer, and the NATS record transport.
package trace

import (
	"github.com/pkg/errors"

	"SketchSpectra/pkg/flowkey"
)

// CntMethod selects what a record contributes to a flow's counter.
type CntMethod int

const (
	// InLength counts header plus payload, in bytes.
	InLength CntMethod = iota
	// InPacket counts each packet as 1.
	InPacket
)

// ParseCntMethod maps the configuration spelling to a CntMethod. Unknown
// spellings default to InLength, matching the reference behaviour.
func ParseCntMethod(s string) CntMethod {
	if s == "InPacket" {
		return InPacket
	}
	return InLength
}

func (m CntMethod) String() string {
	if m == InPacket {
		return "InPacket"
	}
	return "InLength"
}

// Record is one packet's contribution to the stream: a flow key, a
// timestamp in microseconds, and the IP datagram length in bytes.
type Record struct {
	Key       flowkey.Key
	Timestamp int64
	Length    int64
}

// Count returns the record's contribution under the counting method.
func (r *Record) Count(m CntMethod) int64 {
	if m == InPacket {
		return 1
	}
	return r.Length
}

// ErrBadData reports a corrupt record file or a record that does not fit
// its declared format.
var ErrBadData = errors.New("trace: bad data")
