package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/encodeous/dvsim/protocol"
	"github.com/encodeous/dvsim/state"
	"github.com/hashicorp/go-metrics"
)

// Timeouts bound one request. Zero values disable the bound.
type Timeouts struct {
	Dial    time.Duration
	Request time.Duration
}

func TimeoutsOf(cfg state.SimCfg) Timeouts {
	return Timeouts{Dial: cfg.DialTimeout, Request: cfg.RequestTimeout}
}

// Call opens a new connection to addr, writes req and reads the single reply. The connection is
// closed on return, or as soon as ctx is cancelled.
func Call(ctx context.Context, addr string, req *protocol.Request, to Timeouts) (*protocol.Reply, error) {
	labels := []metrics.Label{LabelKind.M(req.Kind.String())}
	metrics.IncrCounterWithLabels(MetricRequestCount, 1, labels)

	reply, err := call(ctx, addr, req, to)
	if err != nil {
		metrics.IncrCounterWithLabels(MetricRequestErrorCount, 1, append(labels, LabelError.M(errorClass(err))))
		return nil, fmt.Errorf("%s to %s: %w", req, addr, err)
	}
	return reply, nil
}

func call(ctx context.Context, addr string, req *protocol.Request, to Timeouts) (*protocol.Reply, error) {
	d := net.Dialer{Timeout: to.Dial}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if to.Request > 0 {
		err = conn.SetDeadline(time.Now().Add(to.Request))
		if err != nil {
			return nil, err
		}
	}

	err = protocol.Send(conn, req)
	if err != nil {
		return nil, err
	}
	reply := &protocol.Reply{}
	err = protocol.Receive(conn, reply)
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}
	if reply.Kind != req.Kind || reply.Id != req.Id {
		return nil, fmt.Errorf("%w: reply %s (req: %s) does not match", protocol.ErrMalformed, reply.Kind, reply.Id)
	}
	return reply, nil
}

// errorClass buckets a request failure for metric labels.
func errorClass(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, protocol.ErrMalformed), errors.Is(err, protocol.ErrPacketSize):
		return "protocol"
	default:
		return "transport"
	}
}
