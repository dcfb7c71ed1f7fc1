package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"acars_hub/internal/message"
	"acars_hub/internal/metrics"
)

const (
	readTimeout      = 1 * time.Second
	reconnectBackoff = 1 * time.Second
	readBufferSize   = 8192
)

// frameDelimiter terminates one decoder JSON object on the wire.
var frameDelimiter = []byte("}\n")

// Listener reads newline-delimited decoder JSON from one TCP endpoint and
// feeds the ingest queues. It reconnects forever with a short backoff and is
// run under the supervisor as a suture service.
type Listener struct {
	source     message.SourceType
	addr       string
	persist    *Queue
	broadcast  *Queue
	hasClients func() bool
	stats      *SourceStats
	log        *zap.Logger
}

// NewListener builds a listener for one decoder source. hasClients gates the
// broadcast queue: formatting work is skipped while nobody is watching.
func NewListener(source message.SourceType, addr string, persist, broadcast *Queue, hasClients func() bool, stats *SourceStats, log *zap.Logger) *Listener {
	return &Listener{
		source:     source,
		addr:       addr,
		persist:    persist,
		broadcast:  broadcast,
		hasClients: hasClients,
		stats:      stats,
		log:        log.With(zap.String("source", string(source)), zap.String("addr", addr)),
	}
}

// Serve dials, reads, and reconnects until ctx is canceled.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := (&net.Dialer{Timeout: 5 * time.Second}).DialContext(ctx, "tcp", l.addr)
		if err != nil {
			l.log.Warn("connect failed, retrying", zap.Error(err))
			metrics.Reconnects.WithLabelValues(string(l.source)).Inc()
			if err := sleepCtx(ctx, reconnectBackoff); err != nil {
				return err
			}
			continue
		}

		l.log.Info("connected")
		err = l.readLoop(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Warn("connection lost, reconnecting", zap.Error(err))
		metrics.Reconnects.WithLabelValues(string(l.source)).Inc()
		if err := sleepCtx(ctx, reconnectBackoff); err != nil {
			return err
		}
	}
}

// readLoop reads frames until the connection drops or ctx is canceled. The
// short read deadline keeps shutdown latency bounded.
func (l *Listener) readLoop(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, readBufferSize)
	var partial []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		n, err := conn.Read(buf)
		if n > 0 {
			partial = l.consume(append(partial, buf[:n]...))
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				return errors.New("peer closed connection")
			}
			return err
		}
	}
}

// consume splits the accumulated buffer on the frame delimiter, processing
// each complete object and returning the trailing partial frame, if any.
func (l *Listener) consume(data []byte) []byte {
	for {
		idx := bytes.Index(data, frameDelimiter)
		if idx < 0 {
			return data
		}
		frame := data[:idx+1]
		data = data[idx+len(frameDelimiter):]
		l.handleFrame(frame)
	}
}

// handleFrame parses one frame and pushes it onto the queues. A malformed
// frame is logged and skipped; it never aborts the connection.
func (l *Listener) handleFrame(frame []byte) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(frame, &raw); err != nil {
		l.log.Warn("malformed frame skipped", zap.Error(err), zap.ByteString("frame", frame))
		metrics.ParseFailures.WithLabelValues(string(l.source)).Inc()
		return
	}

	flat := message.Reformat(raw)

	l.stats.Received.Add(1)
	metrics.MessagesReceived.WithLabelValues(string(l.source)).Inc()
	if errCount, ok := flat["error"].(float64); ok && errCount > 0 {
		l.stats.Errors.Add(1)
		metrics.MessageErrors.WithLabelValues(string(l.source)).Inc()
	}

	if l.hasClients == nil || l.hasClients() {
		l.broadcast.Push(Item{Source: l.source, Raw: message.DeepCopy(flat)})
	}
	l.persist.Push(Item{Source: l.source, Raw: flat})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
