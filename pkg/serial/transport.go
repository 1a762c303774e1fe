package serial

import "context"

// LineTransport is one physical line carrying newline-terminated ASCII
// frames. Exchange writes a single command line and blocks for the single
// acknowledgement line, honouring the context deadline.
//
// Implementations wrap a real serial port or an in-memory rig; the
// channel never touches the wire directly.
type LineTransport interface {
	Exchange(ctx context.Context, line string) (string, error)
	Close() error
}
