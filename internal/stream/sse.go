package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrStreamClosed is reported when the server ends the stream cleanly.
var ErrStreamClosed = errors.New("event stream closed by server")

// StatusError is reported when the subscribe endpoint answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("event stream: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("event stream: HTTP %d: %s", e.StatusCode, e.Body)
}

// SSEOptions configures an SSEDialer.
type SSEOptions struct {
	URL string
	// Client is used for the long-lived GET. It must not set a Timeout.
	Client *http.Client
	Header http.Header
}

// SSEDialer opens server-sent-event streams over HTTP, mirroring the
// browser EventSource contract: open, then messages, then one error.
type SSEDialer struct {
	url    string
	client *http.Client
	header http.Header
}

// NewSSEDialer returns a dialer for the given stream URL.
func NewSSEDialer(opts SSEOptions) *SSEDialer {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &SSEDialer{url: opts.URL, client: client, header: opts.Header}
}

// Dial starts connecting in the background and returns immediately.
func (d *SSEDialer) Dial(ctx context.Context, h Handler) Transport {
	ctx, cancel := context.WithCancel(ctx)
	t := &sseTransport{cancel: cancel, done: make(chan struct{})}
	go t.run(ctx, d, h)
	return t
}

type sseTransport struct {
	cancel    context.CancelFunc
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Close cancels the request and waits for the reader goroutine to exit.
func (t *sseTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.cancel()
	})
	<-t.done
	return nil
}

func (t *sseTransport) run(ctx context.Context, d *SSEDialer, h Handler) {
	defer close(t.done)

	fail := func(err error) {
		if t.closed.Load() || ctx.Err() != nil {
			return
		}
		h.OnError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		fail(err)
		return
	}
	for k, vs := range d.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req) //nolint:gosec // URL comes from validated config
	if err != nil {
		fail(err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fail(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))})
		return
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		fail(fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
		return
	}

	if t.closed.Load() {
		return
	}
	h.OnOpen()

	reader := bufio.NewReader(resp.Body)
	for {
		event, data, err := readSSEEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fail(ErrStreamClosed)
				return
			}
			fail(err)
			return
		}
		switch event {
		case "", "message", "error":
			if t.closed.Load() {
				return
			}
			h.OnMessage(data)
		default:
			continue
		}
	}
}

// readSSEEvent reads one event. Comment lines (":...") are skipped and
// multiple data lines are joined with "\n".
func readSSEEvent(reader *bufio.Reader) (string, []byte, error) {
	var event string
	var data []byte
	var sawData bool
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if event == "" && !sawData {
				continue
			}
			return event, data, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			after = strings.TrimPrefix(after, " ")
			if sawData {
				data = append(data, '\n')
			}
			data = append(data, after...)
			sawData = true
			continue
		}
	}
}
