package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-datalink/link"
)

func TestConn_ReadTimeoutOverNetPipe(t *testing.T) {
	require := require.New(t)

	c1, c2 := net.Pipe()
	conn := NewConn(c1)
	defer conn.Close()
	defer c2.Close()

	go func() {
		_, _ = c2.Write([]byte{0x7E, 0x03, 0x07})
	}()

	for _, want := range []byte{0x7E, 0x03, 0x07} {
		b, err := conn.ReadTimeout(time.Second)
		require.NoError(err)
		require.Equal(want, b)
	}

	_, err := conn.ReadTimeout(20 * time.Millisecond)
	require.ErrorIs(err, link.ErrWouldBlock)
}

func TestConn_DialAccept(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	addr := ln.Addr().String()
	require.NoError(ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan *Conn, 1)
	go func() {
		c, err := Accept(ctx, addr)
		assert.NoError(t, err)
		accepted <- c
	}()

	var client *Conn
	require.Eventually(func() bool {
		client, err = Dial(ctx, addr, time.Second)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
	defer client.Close()

	server := <-accepted
	require.NotNil(server)
	defer server.Close()

	_, err = client.Write([]byte{0x7D})
	require.NoError(err)

	b, err := server.ReadTimeout(time.Second)
	require.NoError(err)
	require.Equal(byte(0x7D), b)
}

func TestAccept_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Accept(ctx, "127.0.0.1:0")
	require.Error(t, err)
}
