package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/uirobot/uimbridge/internal/can"
	"github.com/uirobot/uimbridge/internal/gateway"
	"github.com/uirobot/uimbridge/internal/metrics"
	"github.com/uirobot/uimbridge/internal/simplecan"
	"github.com/uirobot/uimbridge/internal/uimsg"
)

// streamConn is the minimal capability a stream-ingress source needs: a
// TCP connection and an RS-232 port both satisfy it.
type streamConn interface {
	io.Reader
	io.Closer
}

// masterProducerID is the SimpleCAN producer_id this bridge uses when
// translating stream frames onto the CAN bus: the host controller driving
// the bus directly.
const masterProducerID uint8 = 4

// clientReplySink adapts a Client's outbound queue to gateway.ReplySink, so
// a gateway response is written back only to the connection it answers.
type clientReplySink struct{ c *Client }

func (s clientReplySink) Write(frame []byte) error {
	select {
	case s.c.Out <- frame:
		return nil
	default:
		metrics.IncHubDrop()
		return errFullQueue
	}
}

var errFullQueue = errors.New("bridge: client queue full")

// startReader consumes conn in exactly 16-byte UIMessage frames until EOF,
// a read error, or bridge shutdown. Each complete, valid frame is handed to
// the gateway (for locally-addressed replies) and independently translated
// to SimpleCAN and published on the CAN bus, per the address-filter
// asymmetry: stream-ingress frames are always forwarded to CAN regardless
// of whether the gateway also answers them.
func (b *Bridge) startReader(conn streamConn, c *Client, logger *slog.Logger) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			_ = conn.Close()
			b.conns.Remove(c)
			c.Close()
		}()

		sink := clientReplySink{c: c}
		buf := make([]byte, uimsg.FrameLength)
		for {
			select {
			case <-b.done:
				return
			default:
			}

			if _, err := io.ReadFull(conn, buf); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
					return
				}
				wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
				metrics.IncError(mapErrToMetric(wrap))
				logger.Debug("client_read_failed", "error", err)
				return
			}

			msg, err := uimsg.Decode(buf)
			if err != nil {
				metrics.IncMalformed()
				logger.Debug("frame_decode_failed", "error", err)
				continue
			}
			metrics.IncTCPRx()

			b.gateway.HandleMessage(sink, msg)

			id := simplecan.Identifier{
				ProducerID:  masterProducerID,
				ConsumerID:  msg.DeviceID,
				ControlWord: controlWord(msg.NeedAck, msg.FunctionCode),
			}
			frame := can.NewFrame(id.Pack()|can.EFFFlag, msg.Data)
			if err := b.bus.Send(frame); err != nil {
				wrap := fmt.Errorf("%w: %v", ErrCANSend, err)
				metrics.IncError(mapErrToMetric(wrap))
				logger.Debug("can_publish_failed", "error", err)
			}
		}
	}()
}

func controlWord(needAck bool, functionCode uint8) uint8 {
	cw := functionCode & 0x7F
	if needAck {
		cw |= 0x80
	}
	return cw
}
