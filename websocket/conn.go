package websocket

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

// Conn represents one end of a WebSocket connection (RFC 6455).
//
// The canonical contract is Recv/Send: Recv returns the next Event off
// the wire (a data fragment, a control frame, a close, or a fatal
// error), and Send transmits a Message. ReadMessage/ReadText/ReadJSON
// and Write/WriteText/WriteJSON are convenience wrappers built strictly
// on top of that contract for callers that only care about whole
// messages.
//
// A Conn is safe for one concurrent reader and one concurrent writer:
// Recv must not be called from two goroutines at once, but a goroutine
// calling Recv and a goroutine calling Send concurrently is fine.
type Conn struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer

	role Role
	mask *maskSource // nil for Server (server frames are never masked)

	maxPayloadLen atomic.Uint64

	// RFC 6455 Section 5.1: "An endpoint MUST NOT send a data frame while
	// a fragmented message is being transmitted." Send serializes on this
	// mutex; it also protects the underlying writer.
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    atomic.Bool

	// Fragment reassembly state. Recv is the only caller of these fields
	// and is documented as single-goroutine, so no lock is needed.
	inFragment bool
	fragType   MessageType

	// validateUTF8 gates whether Recv itself rejects invalid UTF-8 in text
	// frames. Off by default: the core delivers raw bytes and leaves
	// validation to callers that want it (ReadText always validates,
	// since it promises a Go string).
	validateUTF8 atomic.Bool

	// fragText buffers a fragmented text message across Recv calls so
	// validateUTF8 can check the full reassembled message rather than a
	// single fragment in isolation — a lone fragment can be invalid UTF-8
	// on its own (split mid-codepoint) while the reassembled message is
	// perfectly valid, and conversely an invalid byte sequence earlier in
	// the message would otherwise go unnoticed if only the last fragment
	// were checked. Reset at FragStart, read at FragEnd.
	fragText bytes.Buffer
}

// newConn builds a Conn around an already-upgraded connection. role
// selects masking behavior: a Server-role Conn never masks outbound
// frames and rejects unmasked inbound ones; a Client-role Conn does the
// opposite and carries a maskSource to generate its outbound mask keys.
func newConn(stream io.ReadWriteCloser, reader *bufio.Reader, writer *bufio.Writer, role Role) *Conn {
	c := &Conn{
		conn:   stream,
		reader: reader,
		writer: writer,
		role:   role,
	}
	if role == Client {
		c.mask = newMaskSource()
	}
	c.maxPayloadLen.Store(defaultMaxPayload)
	return c
}

// NewClient wraps an arbitrary bidirectional byte stream as a
// Client-role Conn. No handshake is performed — stream is assumed to
// already be past the RFC 6455 Section 4.1 opening handshake (or to not
// need one at all). Dial is the common-case helper that dials a TCP/TLS
// connection and performs the handshake before calling this.
func NewClient(stream io.ReadWriteCloser) *Conn {
	return newConn(stream, bufio.NewReaderSize(stream, defaultReadBufferSize), bufio.NewWriterSize(stream, defaultWriteBufferSize), Client)
}

// NewServer wraps an arbitrary bidirectional byte stream as a
// Server-role Conn. No handshake is performed — stream is assumed to
// already be past the RFC 6455 Section 4.1 opening handshake (or to not
// need one at all). Upgrade is the common-case helper that performs the
// HTTP upgrade and handshake before calling this.
func NewServer(stream io.ReadWriteCloser) *Conn {
	return newConn(stream, bufio.NewReaderSize(stream, defaultReadBufferSize), bufio.NewWriterSize(stream, defaultWriteBufferSize), Server)
}

// SetMaxPayloadLen overrides the per-frame payload ceiling (default 16
// MiB). A receive that would exceed the limit fails with
// ErrMessageTooLarge instead of allocating the oversized buffer.
func (c *Conn) SetMaxPayloadLen(n uint64) {
	c.maxPayloadLen.Store(n)
}

// SetUTF8Validation turns on (or off) Recv-level validation of text
// frame payloads. Disabled by default; ReadText validates regardless of
// this setting, while ReadMessage returns text payloads unchecked unless
// it is enabled.
func (c *Conn) SetUTF8Validation(enabled bool) {
	c.validateUTF8.Store(enabled)
}

// Role reports whether this Conn is acting as the client or server
// endpoint of the connection.
func (c *Conn) Role() Role { return c.role }

// LocalAddr returns the underlying transport's local address, or nil if
// the stream backing this Conn (e.g. one passed to NewClient/NewServer)
// isn't a net.Conn.
func (c *Conn) LocalAddr() net.Addr {
	if nc, ok := c.conn.(net.Conn); ok {
		return nc.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the underlying transport's remote address, or nil
// if the stream backing this Conn (e.g. one passed to
// NewClient/NewServer) isn't a net.Conn.
func (c *Conn) RemoteAddr() net.Addr {
	if nc, ok := c.conn.(net.Conn); ok {
		return nc.RemoteAddr()
	}
	return nil
}

// Recv reads the next Event from the connection.
//
// Recv surfaces an inbound ping as a PingEvent rather than answering it
// itself — spec.md's canonical stance is that auto-reply composes worse
// with caller-controlled back-pressure than leaving the decision to the
// caller. Use AutoPong if a transparent pong reply is wanted. Recv marks
// the connection closed before returning a CloseEvent or ErrorEvent —
// callers do not need to call Close themselves after either. A
// fragmented message surfaces as a FragStart DataEvent, zero or more
// FragNext DataEvents, and a FragEnd DataEvent; callers that only want
// whole messages should use ReadMessage instead.
//
// Recv is not safe to call from multiple goroutines concurrently.
func (c *Conn) Recv() (Event, error) {
	if c.closed.Load() {
		return ErrorEvent{Err: ErrClosed}, ErrClosed
	}

	for {
		f, err := readFrame(c.reader, c.role, c.maxPayloadLen.Load())
		if err != nil {
			c.closed.Store(true)
			return ErrorEvent{Err: err}, err
		}

		switch f.opcode {
		case opcodePing:
			return PingEvent{Payload: f.payload}, nil

		case opcodePong:
			return PongEvent{Payload: f.payload}, nil

		case opcodeClose:
			code, reason, perr := decodeClosePayload(f.payload)
			c.closed.Store(true)
			if perr != nil {
				_ = c.sendClose(CloseProtocolError, "")
				return ErrorEvent{Err: perr}, perr
			}
			echo := code
			if !echo.sendable() {
				echo = CloseNormalClosure
			}
			_ = c.sendClose(echo, "")
			return CloseEvent{Code: code, Reason: reason}, ErrClosed

		case opcodeText, opcodeBinary:
			msgType := MessageType(f.opcode)
			if !f.fin {
				c.inFragment = true
				c.fragType = msgType
				if msgType == TextMessage && c.validateUTF8.Load() {
					c.fragText.Reset()
					c.fragText.Write(f.payload)
				}
				return DataEvent{Type: msgType, Kind: FragStart, Payload: f.payload}, nil
			}
			if msgType == TextMessage && c.validateUTF8.Load() && !utf8.Valid(f.payload) {
				c.closed.Store(true)
				_ = c.sendClose(CloseInvalidFramePayloadData, "invalid UTF-8")
				return ErrorEvent{Err: ErrInvalidUTF8}, ErrInvalidUTF8
			}
			return DataEvent{Type: msgType, Kind: FragComplete, Payload: f.payload}, nil

		case opcodeContinuation:
			if !c.inFragment {
				c.closed.Store(true)
				_ = c.sendClose(CloseProtocolError, "unexpected continuation")
				return ErrorEvent{Err: ErrUnexpectedContinuation}, ErrUnexpectedContinuation
			}
			validating := c.fragType == TextMessage && c.validateUTF8.Load()
			if !f.fin {
				if validating {
					c.fragText.Write(f.payload)
				}
				return DataEvent{Type: c.fragType, Kind: FragNext, Payload: f.payload}, nil
			}
			c.inFragment = false
			msgType := c.fragType
			if validating {
				c.fragText.Write(f.payload)
				if !utf8.Valid(c.fragText.Bytes()) {
					c.closed.Store(true)
					_ = c.sendClose(CloseInvalidFramePayloadData, "invalid UTF-8")
					return ErrorEvent{Err: ErrInvalidUTF8}, ErrInvalidUTF8
				}
			}
			return DataEvent{Type: msgType, Kind: FragEnd, Payload: f.payload}, nil

		default:
			// isValidOpcode already rejected anything else in readFrame.
			continue
		}
	}
}

// ReadMessage reads and reassembles the next complete message,
// transparently skipping ping/pong events (inbound pings are dropped
// without a reply) and surfacing only data and terminal (close/error)
// conditions.
func (c *Conn) ReadMessage() (MessageType, []byte, error) {
	var buf bytes.Buffer
	var msgType MessageType

	for {
		ev, err := c.Recv()
		if err != nil {
			return 0, nil, err
		}

		switch e := ev.(type) {
		case PingEvent, PongEvent:
			continue

		case DataEvent:
			switch e.Kind {
			case FragComplete:
				return e.Type, e.Payload, nil
			case FragStart:
				msgType = e.Type
				buf.Reset()
				buf.Write(e.Payload)
			case FragNext:
				buf.Write(e.Payload)
			case FragEnd:
				buf.Write(e.Payload)
				result := make([]byte, buf.Len())
				copy(result, buf.Bytes())
				return msgType, result, nil
			}

		case CloseEvent, ErrorEvent:
			return 0, nil, ErrClosed
		}
	}
}

// ReadText reads the next complete message and requires it to be text,
// validating its UTF-8 regardless of SetUTF8Validation.
func (c *Conn) ReadText() (string, error) {
	msgType, data, err := c.ReadMessage()
	if err != nil {
		return "", err
	}
	if msgType != TextMessage {
		return "", ErrInvalidMessageType
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

// ReadJSON reads the next complete text message and unmarshals it into v.
func (c *Conn) ReadJSON(v any) error {
	msgType, data, err := c.ReadMessage()
	if err != nil {
		return err
	}
	if msgType != TextMessage {
		return ErrInvalidMessageType
	}
	return json.Unmarshal(data, v)
}

// Send transmits a Message as a single frame. Text, binary, ping and
// pong messages are sent unfragmented; a Frame is sent with the caller's
// Fin bit, so it may be one fragment of a larger message.
//
// Safe for concurrent use: writes are serialized internally.
func (c *Conn) Send(msg Message) error {
	if c.closed.Load() {
		return ErrClosed
	}

	switch m := msg.(type) {
	case TextMessageData:
		if !utf8.ValidString(m.Data) {
			return ErrInvalidUTF8
		}
		return c.sendData(opcodeText, []byte(m.Data))

	case BinaryMessageData:
		return c.sendData(opcodeBinary, m.Data)

	case PingMessage:
		if len(m.Payload) > maxControlPayload {
			return ErrControlTooLarge
		}
		return c.sendControl(opcodePing, m.Payload)

	case PongMessage:
		if len(m.Payload) > maxControlPayload {
			return ErrControlTooLarge
		}
		return c.sendControl(opcodePong, m.Payload)

	case Frame:
		return c.sendFrame(&frame{fin: m.Fin, opcode: m.Opcode, payload: m.Data})

	default:
		return fmt.Errorf("websocket: unsupported message type %T", msg)
	}
}

// Write sends data as a single-frame message of the given type.
func (c *Conn) Write(messageType MessageType, data []byte) error {
	switch messageType {
	case TextMessage:
		return c.Send(TextMessageData{Data: string(data)})
	case BinaryMessage:
		return c.Send(BinaryMessageData{Data: data})
	default:
		return ErrInvalidMessageType
	}
}

// WriteText sends text as a single-frame text message.
func (c *Conn) WriteText(text string) error {
	return c.Send(TextMessageData{Data: text})
}

// WriteJSON marshals v and sends it as a single-frame text message.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.sendData(opcodeText, data)
}

// SendPing sends a ping frame. Application data is optional (<=125
// bytes per RFC 6455 Section 5.5); the peer is expected to answer with
// a pong carrying the same payload.
func (c *Conn) SendPing(data []byte) error {
	if len(data) > maxControlPayload {
		return ErrControlTooLarge
	}
	return c.sendControl(opcodePing, data)
}

// SendPong sends a pong frame. Recv does not answer inbound pings
// itself, so this serves both for replying to a PingEvent and for
// heartbeats a caller wants to originate itself.
func (c *Conn) SendPong(data []byte) error {
	if len(data) > maxControlPayload {
		return ErrControlTooLarge
	}
	return c.sendControl(opcodePong, data)
}

// Close sends a close frame with CloseNormalClosure and shuts down the
// underlying connection. Idempotent.
func (c *Conn) Close() error {
	return c.CloseWithCode(CloseNormalClosure, "")
}

// CloseWithCode sends a close frame carrying code and reason, then
// closes the underlying transport. Idempotent: subsequent calls are a
// no-op returning nil, matching a connection that's already gone.
//
// RFC 6455 Section 7.1.2 describes a full closing handshake (wait for
// the peer's echoing close frame before closing the transport); this
// implementation closes immediately after sending, which is sufficient
// for the abbreviated local half of the handshake.
func (c *Conn) CloseWithCode(code CloseCode, reason string) error {
	if !code.sendable() {
		return ErrInvalidCloseCode
	}
	if len(reason) > maxCloseReasonBytes {
		return ErrCloseReasonTooLong
	}

	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.sendClose(code, reason)
		if c.conn != nil {
			if cerr := c.conn.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

// sendClose writes a close frame without touching c.closed or closeOnce
// (both callers — Close and the Recv close-echo path — manage that
// themselves).
func (c *Conn) sendClose(code CloseCode, reason string) error {
	payload := encodeClosePayload(code, reason)
	return c.sendFrame(&frame{fin: true, opcode: opcodeClose, payload: payload})
}

func (c *Conn) sendControl(opcode byte, payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.sendFrame(&frame{fin: true, opcode: opcode, payload: payload})
}

func (c *Conn) sendData(opcode byte, payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.sendFrame(&frame{fin: true, opcode: opcode, payload: payload})
}

// sendFrame masks f (if this Conn is a Client) and writes it to the
// wire, serialized by writeMu per RFC 6455 Section 5.1.
//
// Server frames are never masked, so when the stream is a net.Conn they
// take a vectored write: the header and the caller's payload slice are
// handed to the kernel as two segments via net.Buffers, skipping the
// copy that combining them into one buffer would require. Client frames
// must be masked, which needs a combined, mutable buffer, so they (and
// server frames on a stream that is not a net.Conn) use encodeFrame's
// single-allocation path through the buffered writer instead.
func (c *Conn) sendFrame(f *frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.role == Client {
		f.masked = true
		f.mask = c.mask.next()
	}

	nc, vectored := c.conn.(net.Conn)
	if c.role == Client || !vectored {
		buf := encodeFrame(f)
		if _, err := c.writer.Write(buf); err != nil {
			return err
		}
		return c.writer.Flush()
	}

	if err := c.writer.Flush(); err != nil {
		return err
	}
	header := encodeHeader(f)
	buffers := net.Buffers{header}
	if len(f.payload) > 0 {
		buffers = append(buffers, f.payload)
	}
	_, err := buffers.WriteTo(nc)
	return err
}
