package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/transitlight/internal/metrics"
)

const writeTimeout = 30 * time.Second

// client writes the events of a single SSE connection.
type client struct {
	w       io.Writer
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

func newClient(w io.Writer, flusher http.Flusher, rc *http.ResponseController, logger *slog.Logger) *client {
	return &client{w: w, flusher: flusher, rc: rc, logger: logger}
}

// sendJSON marshals v and sends it as a "data:" event.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.sendData(data)
}

// sendData sends an already encoded payload as "data: {json}\n\n".
func (c *client) sendData(data []byte) error {
	if err := c.write("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(ms int) error {
	return c.write(fmt.Sprintf("retry: %d\n\n", ms))
}

// sendKeepalive sends an SSE comment line.
func (c *client) sendKeepalive() error {
	return c.write(":\n\n")
}

// write pushes raw event text to the connection and flushes it. The write
// deadline is extended before every write.
func (c *client) write(s string) error {
	if c.rc != nil {
		if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			c.logger.Debug("could not set write deadline", "error", err)
		}
	}
	n, err := io.WriteString(c.w, s)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(n)
	return nil
}
