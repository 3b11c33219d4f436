package websocket

// Autoresponder wraps a Conn so that Recv transparently replies to every
// inbound ping with a pong before surfacing the PingEvent. This is a
// library convenience layered on top of Recv, not part of the state
// machine itself — Conn.Recv always just surfaces the PingEvent and
// leaves the reply to the caller.
type Autoresponder struct {
	conn *Conn
}

// AutoPong returns an Autoresponder wrapping c.
func (c *Conn) AutoPong() *Autoresponder {
	return &Autoresponder{conn: c}
}

// Recv behaves exactly like the wrapped Conn's Recv, except it answers
// every inbound ping with a pong carrying the same payload before
// returning the PingEvent to the caller.
func (a *Autoresponder) Recv() (Event, error) {
	ev, err := a.conn.Recv()
	if err != nil {
		return ev, err
	}

	if ping, ok := ev.(PingEvent); ok {
		if serr := a.conn.SendPong(ping.Payload); serr != nil {
			a.conn.closed.Store(true)
			return ErrorEvent{Err: serr}, serr
		}
	}

	return ev, nil
}
