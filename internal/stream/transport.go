package stream

import "context"

// Handler receives transport events. Implementations must tolerate calls
// from the transport's own goroutine.
type Handler interface {
	// OnOpen is called once the stream is established.
	OnOpen()
	// OnMessage is called for each data frame, in arrival order.
	OnMessage(data []byte)
	// OnError is called at most once when the transport fails or the
	// server closes the stream. Transports should not call it after Close;
	// the Manager discards late callbacks from closed transports.
	OnError(err error)
}

// Transport is one open (or opening) push-stream connection.
type Transport interface {
	Close() error
}

// Dialer opens transports. Dial must not block on network I/O: the
// connection is established asynchronously and reported through h.
type Dialer interface {
	Dial(ctx context.Context, h Handler) Transport
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, h Handler) Transport

// Dial calls f(ctx, h).
func (f DialerFunc) Dial(ctx context.Context, h Handler) Transport {
	return f(ctx, h)
}
