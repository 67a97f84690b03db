package check

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/relaylb/checkengine/internal/backend"
)

// patchSSL3Timestamp overwrites the 4-byte big-endian Unix timestamp
// at offset 11 of an SSLv3 ClientHello probe payload, in place.
// Payloads shorter than 15 bytes are left untouched.
func patchSSL3Timestamp(req []byte, now time.Time) {
	if len(req) < 15 {
		return
	}
	binary.BigEndian.PutUint32(req[11:15], uint32(now.Unix()))
}

// acceptReply classifies a probe reply by protocol. proto is the
// bitmask of protocols the proxy is configured to check; the zero
// value (bare TCP) is handled by the caller before a reply is even
// read, so acceptReply is only consulted when at least one protocol
// bit is set.
func acceptReply(proto backend.CheckProto, reply []byte) bool {
	switch {
	case proto&backend.ProtoHTTP != 0:
		return len(reply) >= len("HTTP/1.0 000") &&
			bytes.Equal(reply[:7], []byte("HTTP/1.")) &&
			(reply[9] == '2' || reply[9] == '3')
	case proto&backend.ProtoSSL3 != 0:
		return len(reply) >= 5 && (reply[0] == 0x15 || reply[0] == 0x16)
	case proto&backend.ProtoSMTP != 0:
		return len(reply) >= 3 && reply[0] == '2'
	default:
		return false
	}
}
