package bridge

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/uirobot/uimbridge/internal/metrics"
)

// startWriter drains client.Out onto conn until the client is closed or the
// bridge is shutting down. Frames are written one at a time and in arrival
// order; there is no batching, since every frame is a fixed 16 bytes.
func (b *Bridge) startWriter(conn io.Writer, c *Client, logger *slog.Logger) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case frame := <-c.Out:
				if _, err := conn.Write(frame); err != nil {
					wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
					metrics.IncError(mapErrToMetric(wrap))
					logger.Debug("client_write_failed", "error", err)
					b.conns.Remove(c)
					return
				}
				metrics.AddTCPTx(1)
			case <-c.Closed:
				return
			case <-b.done:
				return
			}
		}
	}()
}
