package websocket

import (
	"encoding/binary"
)

// CloseCode is the 16-bit status code carried in the body of a close
// frame (RFC 6455 Section 7.4).
type CloseCode uint16

const (
	CloseNormalClosure          CloseCode = 1000
	CloseGoingAway              CloseCode = 1001
	CloseProtocolError          CloseCode = 1002
	CloseUnsupportedData        CloseCode = 1003
	// 1004 is reserved and MUST NOT be used.
	CloseNoStatusReceived       CloseCode = 1005 // never sent; accepted if a peer sends it
	CloseAbnormalClosure        CloseCode = 1006 // never sent; synthesized for transport-level loss
	CloseInvalidFramePayloadData CloseCode = 1007
	ClosePolicyViolation        CloseCode = 1008
	CloseMessageTooBig          CloseCode = 1009
	CloseMandatoryExtension     CloseCode = 1010
	CloseInternalServerErr      CloseCode = 1011
	CloseServiceRestart         CloseCode = 1012
	CloseTryAgainLater          CloseCode = 1013
	// 1014 is reserved and MUST NOT be used.
	CloseTLSHandshake CloseCode = 1015 // never sent; synthesized for local TLS failure
)

// String returns a human-readable label for the close code.
//
//nolint:cyclop // 14 close codes per RFC 6455
func (cc CloseCode) String() string {
	switch cc {
	case CloseNormalClosure:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseProtocolError:
		return "protocol error"
	case CloseUnsupportedData:
		return "unsupported data"
	case CloseNoStatusReceived:
		return "no status received"
	case CloseAbnormalClosure:
		return "abnormal closure"
	case CloseInvalidFramePayloadData:
		return "invalid frame payload data"
	case ClosePolicyViolation:
		return "policy violation"
	case CloseMessageTooBig:
		return "message too big"
	case CloseMandatoryExtension:
		return "mandatory extension"
	case CloseInternalServerErr:
		return "internal server error"
	case CloseServiceRestart:
		return "service restart"
	case CloseTryAgainLater:
		return "try again later"
	case CloseTLSHandshake:
		return "TLS handshake"
	default:
		if cc >= 3000 && cc <= 4999 {
			return "application-defined"
		}
		return "unknown"
	}
}

// sendable reports whether cc may be transmitted on the wire. Codes 1005,
// 1006 and 1015 are reserved for local signaling only and must never be
// sent (RFC 6455 Section 7.4.1); 1004 and 1014 are simply reserved.
func (cc CloseCode) sendable() bool {
	switch {
	case cc >= 1000 && cc <= 1003:
		return true
	case cc >= 1007 && cc <= 1013:
		return true
	case cc >= 3000 && cc <= 4999:
		return true
	default:
		return false
	}
}

// receivable reports whether cc is a value this implementation will
// accept in an inbound close frame. It is the sendable set plus 1005,
// which this implementation never sends. A close frame with no status
// code at all decodes to CloseNormalClosure (see decodeClosePayload).
func (cc CloseCode) receivable() bool {
	return cc.sendable() || cc == CloseNoStatusReceived
}

// maxCloseReasonBytes bounds the UTF-8 reason so that a 2-byte code plus
// the reason never exceeds the 125-byte control-frame payload ceiling.
const maxCloseReasonBytes = 123

// encodeClosePayload builds a close-frame payload: the 2-byte big-endian
// code followed by the UTF-8 reason, truncated to maxCloseReasonBytes.
// The payload always carries the code, so it is never shorter than 2
// bytes.
func encodeClosePayload(code CloseCode, reason string) []byte {
	if len(reason) > maxCloseReasonBytes {
		reason = reason[:maxCloseReasonBytes]
	}
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	return payload
}

// decodeClosePayload parses a received close-frame payload. An empty
// payload yields CloseNormalClosure with no reason, per spec ("default
// 1000 when empty"). Returns ErrInvalidCloseCode for 1004, out-of-range,
// or otherwise non-receivable codes.
func decodeClosePayload(payload []byte) (code CloseCode, reason string, err error) {
	if len(payload) == 0 {
		return CloseNormalClosure, "", nil
	}
	if len(payload) == 1 {
		return 0, "", ErrProtocolError
	}

	code = CloseCode(binary.BigEndian.Uint16(payload[:2]))
	if !code.receivable() {
		return 0, "", ErrInvalidCloseCode
	}

	reason = string(payload[2:])
	return code, reason, nil
}
