package rcon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	rcerr "rconrelay/internal/errors"
)

// Packet types.  Exec-command and auth-response share the value 2; the
// direction and the session phase tell them apart.
const (
	TypeResponseValue int32 = 0
	TypeExecCommand   int32 = 2
	TypeAuthResponse  int32 = 2
	TypeAuth          int32 = 3
)

const (
	// headerSize is the id and type fields that follow the length.
	headerSize = 8
	// minPacketLen is the length of a packet with an empty body: the
	// header plus the body terminator plus the trailing NUL.
	minPacketLen = headerSize + 2

	// MaxPacketSize bounds an inbound packet's length field.
	MaxPacketSize = 64 * 1024
	// MaxCommandSize is the longest body a client may send.
	MaxCommandSize = 4096 - minPacketLen

	// authFailedID is the request id a server answers with when it
	// rejects the password.
	authFailedID int32 = -1
)

// Packet is one frame of the console protocol.
type Packet struct {
	ID   int32
	Type int32
	Body string
}

// Len is the value of the packet's length field.
func (p Packet) Len() int { return len(p.Body) + minPacketLen }

// MarshalBinary encodes p as it appears on the wire.
func (p Packet) MarshalBinary() ([]byte, error) {
	n := p.Len()
	buf := make([]byte, 4+n)
	binary.LittleEndian.PutUint32(buf[0:], uint32(int32(n)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:], uint32(p.Type))
	copy(buf[12:], p.Body)
	// The two trailing bytes are already zero.
	return buf, nil
}

// WritePacket frames p onto w and returns the number of bytes written.
func WritePacket(w io.Writer, p Packet) (int, error) {
	buf, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}

// ReadPacket reads one frame from r.  The returned count includes the
// length prefix.  The body ends at its first NUL.
func ReadPacket(r io.Reader) (Packet, int, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Packet{}, 0, err
	}
	n := int32(binary.LittleEndian.Uint32(lenBuf[:]))
	if n < minPacketLen {
		return Packet{}, 4, fmt.Errorf("%w: length %d", rcerr.ErrMalformed, n)
	}
	if n > MaxPacketSize {
		return Packet{}, 4, fmt.Errorf("%w: length %d exceeds %d", rcerr.ErrPacketTooLarge, n, MaxPacketSize)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, 4, err
	}

	body := buf[headerSize:]
	end := bytes.IndexByte(body, 0)
	if end < 0 {
		return Packet{}, 4 + int(n), fmt.Errorf("%w: body not terminated", rcerr.ErrMalformed)
	}

	return Packet{
		ID:   int32(binary.LittleEndian.Uint32(buf[0:])),
		Type: int32(binary.LittleEndian.Uint32(buf[4:])),
		Body: string(body[:end]),
	}, 4 + int(n), nil
}

// ValidateCommand reports whether command can be framed as a single
// exec packet.
func ValidateCommand(command string) error {
	switch {
	case command == "":
		return fmt.Errorf("command is empty")
	case len(command) > MaxCommandSize:
		return fmt.Errorf("command is %d bytes, limit is %d", len(command), MaxCommandSize)
	case strings.IndexByte(command, 0) >= 0:
		return fmt.Errorf("command contains a NUL byte")
	}
	return nil
}
