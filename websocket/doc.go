// Package websocket implements the RFC 6455 WebSocket protocol as an
// embeddable library, usable from both client and server roles.
//
// The package is split into a frame codec, a masking utility, a
// close-reason encoder, a connection state machine, and a message-type
// dispatch layer, mirroring RFC 6455 Section 5. It handles:
//   - Text and binary data frames, fragmented or not
//   - Control frames (close, ping, pong)
//   - Role-dependent masking (clients mask, servers don't)
//   - Payload length encoding (7-bit, 16-bit, 64-bit)
//
// The HTTP upgrade handshake, TLS, and the choice of network runtime are
// treated as external collaborators: Conn only assumes a stream that can
// be read from and written to. Upgrade (server) and Dial (client) are the
// two boundary functions that produce a Conn from an HTTP handshake.
//
// RFC Reference: https://datatracker.ietf.org/doc/html/rfc6455
package websocket
