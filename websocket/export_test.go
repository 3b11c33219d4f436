package websocket

// This file exports internal types and functions for testing.

import (
	"bufio"
	"net"
)

// Test exports for frame operations.

// FrameForTest is an exported version of frame for testing.
type FrameForTest struct {
	Fin     bool
	Rsv1    bool
	Rsv2    bool
	Rsv3    bool
	Opcode  byte
	Masked  bool
	Mask    [4]byte
	Payload []byte
}

// ReadFrameForTest reads a frame (exported for testing).
func ReadFrameForTest(r *bufio.Reader, role Role, maxPayload uint64) (*FrameForTest, error) {
	f, err := readFrame(r, role, maxPayload)
	if err != nil {
		return nil, err
	}

	return &FrameForTest{
		Fin:     f.fin,
		Rsv1:    f.rsv1,
		Rsv2:    f.rsv2,
		Rsv3:    f.rsv3,
		Opcode:  f.opcode,
		Masked:  f.masked,
		Mask:    f.mask,
		Payload: f.payload,
	}, nil
}

// EncodeFrameForTest serializes a frame (exported for testing).
func EncodeFrameForTest(ft *FrameForTest) []byte {
	f := &frame{
		fin:     ft.Fin,
		rsv1:    ft.Rsv1,
		rsv2:    ft.Rsv2,
		rsv3:    ft.Rsv3,
		opcode:  ft.Opcode,
		masked:  ft.Masked,
		mask:    ft.Mask,
		payload: ft.Payload,
	}

	return encodeFrame(f)
}

// EncodeHeaderForTest serializes only a frame's header (exported for testing).
func EncodeHeaderForTest(ft *FrameForTest) []byte {
	f := &frame{
		fin:     ft.Fin,
		rsv1:    ft.Rsv1,
		rsv2:    ft.Rsv2,
		rsv3:    ft.Rsv3,
		opcode:  ft.Opcode,
		payload: ft.Payload,
	}

	return encodeHeader(f)
}

// GetReaderForTest returns internal reader from Conn (exported for testing).
func GetReaderForTest(conn *Conn) *bufio.Reader {
	return conn.reader
}

// GetWriterForTest returns internal writer from Conn (exported for testing).
func GetWriterForTest(conn *Conn) *bufio.Writer {
	return conn.writer
}

// ApplyMaskForTest applies XOR mask to payload (exported for testing).
func ApplyMaskForTest(data []byte, mask [4]byte) {
	applyMask(data, mask)
}

// Opcode constants for testing.
const (
	OpcodeContinuationForTest = opcodeContinuation
	OpcodeTextForTest         = opcodeText
	OpcodeBinaryForTest       = opcodeBinary
	OpcodeCloseForTest        = opcodeClose
	OpcodePingForTest         = opcodePing
	OpcodePongForTest         = opcodePong
)

// NewConnForTest creates a Conn from a raw net.Conn for testing.
//
// This is used by test clients that perform manual WebSocket handshakes.
// role: Server for server-side connections, Client for client-side.
func NewConnForTest(conn net.Conn, reader *bufio.Reader, role Role) *Conn {
	c := &Conn{
		conn:   conn,
		reader: reader,
		writer: bufio.NewWriter(conn),
		role:   role,
	}
	if role == Client {
		c.mask = newMaskSource()
	}
	c.maxPayloadLen.Store(defaultMaxPayload)
	return c
}

// EncodeClosePayloadForTest builds a close-frame payload (exported for testing).
func EncodeClosePayloadForTest(code CloseCode, reason string) []byte {
	return encodeClosePayload(code, reason)
}

// DecodeClosePayloadForTest parses a close-frame payload (exported for testing).
func DecodeClosePayloadForTest(payload []byte) (CloseCode, string, error) {
	return decodeClosePayload(payload)
}
