package bridge

import (
	"errors"

	"github.com/uirobot/uimbridge/internal/metrics"
)

// Sentinel errors, wrapped with %w so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrConnRead  = errors.New("conn_read")
	ErrConnWrite = errors.New("conn_write")
	ErrCANSend   = errors.New("can_send")
	ErrShutdown  = errors.New("shutdown_timeout")
)

func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrConnRead):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrTCPWrite
	case errors.Is(err, ErrCANSend):
		return metrics.ErrSocketCANWrite
	case errors.Is(err, ErrAccept), errors.Is(err, ErrListen):
		return metrics.ErrTCPRead
	default:
		return "other"
	}
}
