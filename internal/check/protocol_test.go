package check

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaylb/checkengine/internal/backend"
)

func TestAcceptReplyHTTP(t *testing.T) {
	assert.True(t, acceptReply(backend.ProtoHTTP, []byte("HTTP/1.0 200 OK\r\n\r\n")))
	assert.True(t, acceptReply(backend.ProtoHTTP, []byte("HTTP/1.1 302 Found\r\n\r\n")))
	assert.False(t, acceptReply(backend.ProtoHTTP, []byte("HTTP/1.0 503 Service Unavailable\r\n\r\n")))
	assert.False(t, acceptReply(backend.ProtoHTTP, []byte("garbage")))
}

func TestAcceptReplySSL3(t *testing.T) {
	assert.True(t, acceptReply(backend.ProtoSSL3, []byte{0x16, 0x03, 0x00, 0x00, 0x4a}))
	assert.True(t, acceptReply(backend.ProtoSSL3, []byte{0x15, 0x03, 0x00, 0x00, 0x02}))
	assert.False(t, acceptReply(backend.ProtoSSL3, []byte{0x00, 0x00}))
}

func TestAcceptReplySMTP(t *testing.T) {
	assert.True(t, acceptReply(backend.ProtoSMTP, []byte("220 mail.example.com ESMTP\r\n")))
	assert.False(t, acceptReply(backend.ProtoSMTP, []byte("421 service not available\r\n")))
}

func TestAcceptReplyBareTCPDefaultsFalse(t *testing.T) {
	assert.False(t, acceptReply(0, []byte("anything")))
}

func TestPatchSSL3TimestampOverwritesOffset11(t *testing.T) {
	req := make([]byte, 20)
	now := time.Unix(1700000000, 0)
	patchSSL3Timestamp(req, now)
	assert.Equal(t, uint32(1700000000), binary.BigEndian.Uint32(req[11:15]))
}

func TestPatchSSL3TimestampLeavesShortPayloadUntouched(t *testing.T) {
	req := []byte{1, 2, 3}
	patchSSL3Timestamp(req, time.Now())
	assert.Equal(t, []byte{1, 2, 3}, req)
}
