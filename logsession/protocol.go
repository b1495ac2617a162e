// Package logsession implements the third session realization named in
// spec.md §1 and expanded in SPEC_FULL.md §4.10: a TCP session that tails
// a log aggregator's event stream to a connected peer, accepting a small
// command envelope at the very start of the session and afterwards
// behaving as pure one-way egress, grounded on
// original_source/src/Log/LogSession.cc's LogServerTypes::lsMessage.
package logsession

import (
	"encoding/binary"
	"errors"

	liberr "github.com/un9021/uniset2/errors"
)

// Magic identifies a well-formed command envelope; a mismatch is a
// PeerProtocolError and the session is treated as read-only from then on
// (original_source's "BAD MESSAGE" branch).
const Magic uint32 = 0x554e4c53 // "UNLS"

// LogNameSize is the fixed width of the logname field, matching the
// original's fixed char buffer rather than a length-prefixed string.
const LogNameSize = 64

// Cmd tags the one-time commands a peer may issue at session start.
type Cmd uint8

const (
	CmdSetLevel Cmd = iota + 1
	CmdAddLevel
	CmdDelLevel
	CmdRotate
	CmdOffLogFile
	CmdOnLogFile
)

// EnvelopeSize is the wire size of one fixed envelope: magic(4) + cmd(1)
// + dataLen(2) + data(4, a level bitmask) + logname(64).
const EnvelopeSize = 4 + 1 + 2 + 4 + LogNameSize

// Envelope is the decoded command message, matching
// LogServerTypes::lsMessage{magic, cmd, data, logname}.
type Envelope struct {
	Magic   uint32
	Command Cmd
	Data    int32
	LogName string
}

var errShortEnvelope = errors.New("logsession: short envelope")

// DecodeEnvelope parses one fixed-size envelope off the wire. A magic
// mismatch is reported via liberr.ErrPeerProtocol rather than a plain
// error, so callers can treat it the same as any other spec.md §7
// protocol violation.
func DecodeEnvelope(buf []byte) (Envelope, liberr.Error) {
	if len(buf) < EnvelopeSize {
		return Envelope{}, liberr.ErrPeerProtocol.Error()
	}

	magic := binary.BigEndian.Uint32(buf[0:4])
	cmd := Cmd(buf[4])
	dataLen := binary.BigEndian.Uint16(buf[5:7])
	data := int32(binary.BigEndian.Uint32(buf[7:11]))
	name := decodeFixedString(buf[11 : 11+LogNameSize])

	if magic != Magic {
		return Envelope{}, liberr.ErrPeerProtocol.Error()
	}
	_ = dataLen // the bitmask is fixed-width here; dataLen is kept for wire fidelity only

	return Envelope{Magic: magic, Command: cmd, Data: data, LogName: name}, nil
}

// EncodeEnvelope is the inverse of DecodeEnvelope, used by tests and by
// any client issuing a one-time command.
func EncodeEnvelope(e Envelope) []byte {
	buf := make([]byte, EnvelopeSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = byte(e.Command)
	binary.BigEndian.PutUint16(buf[5:7], 4)
	binary.BigEndian.PutUint32(buf[7:11], uint32(e.Data))
	encodeFixedString(buf[11:11+LogNameSize], e.LogName)
	return buf
}

func decodeFixedString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func encodeFixedString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}
