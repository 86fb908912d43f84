package core

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/encodeous/dvsim/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass(t *testing.T) {
	assert.Equal(t, "cancelled", errorClass(fmt.Errorf("x: %w", context.Canceled)))
	assert.Equal(t, "timeout", errorClass(fmt.Errorf("x: %w", os.ErrDeadlineExceeded)))
	assert.Equal(t, "protocol", errorClass(fmt.Errorf("x: %w", protocol.ErrMalformed)))
	assert.Equal(t, "transport", errorClass(net.ErrClosed))
}

func TestCallRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = Call(context.Background(), addr, protocol.NewRequest(protocol.GetDV), Timeouts{Dial: time.Second})
	assert.Error(t, err)
}

func TestCallCancelledWhileWaiting(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		// accept and never reply
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1024)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = Call(ctx, l.Addr().String(), protocol.NewRequest(protocol.GetDV), Timeouts{})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
