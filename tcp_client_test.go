package orchid

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClientConfig = TCPClientConfiguration{
	ReadLoop:            ReadLoopConfig{PollTimeout: 5 * time.Millisecond, MaxBufferSize: 1024},
	DialTimeout:         time.Second,
	ReconnectBackoffMin: time.Millisecond,
	ReconnectBackoffMax: 20 * time.Millisecond,
}

func TestTCPClientConnectAndSend(t *testing.T) {
	serverSide := &byteLength{}
	server := startServer(t, serverSide, NoLoadBalancer, 10)
	defer server.Stop()

	clientSide := &byteLength{}
	client := CreateNewTCPClient(server.Addr().String(), clientSide, testClientConfig)

	_, err := client.Send([]byte(frame("too early")))
	assert.ErrorIs(t, err, ErrNotConnected)

	conn, err := client.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, conn, client.Connection())

	_, err = client.Send([]byte(frame("hello server")))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, frames := serverSide.recorded()
		return len(frames) == 1
	}, time.Second, time.Millisecond)

	sessions := server.FindConnectionsByIp("127.0.0.1")
	require.Len(t, sessions, 1)
	_, err = sessions[0].Send([]byte(frame("hello client")))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, frames := clientSide.recorded()
		return len(frames) == 1
	}, time.Second, time.Millisecond)

	client.Stop()
	<-conn.Done()
}

func TestTCPClientConnectFails(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := CreateNewTCPClient(address, &byteLength{}, testClientConfig)
	_, err = client.Connect(context.Background())
	assert.Error(t, err)
	assert.Nil(t, client.Connection())
}

func TestTCPClientRunReconnects(t *testing.T) {
	serverSide := &byteLength{}
	server := startServer(t, serverSide, NoLoadBalancer, 10)
	defer server.Stop()

	client := CreateNewTCPClient(server.Addr().String(), &byteLength{}, testClientConfig)

	returned := make(chan error)
	go func() { returned <- client.Run(context.Background()) }()

	assert.Eventually(t, func() bool { return client.Connection() != nil }, time.Second, time.Millisecond)
	first := client.Connection()

	// the server drops the session, the client dials again
	assert.Eventually(t, func() bool { return len(server.FindConnectionsByIp("127.0.0.1")) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, server.FindConnectionsByIp("127.0.0.1")[0].Close())

	assert.Eventually(t, func() bool {
		current := client.Connection()
		return current != nil && current != first
	}, 2*time.Second, time.Millisecond)

	_, err := client.Send([]byte(frame("again")))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, frames := serverSide.recorded()
		return len(frames) == 1
	}, time.Second, time.Millisecond)

	client.Stop()
	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestTCPClientRunStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := CreateNewTCPClient(address, &byteLength{}, testClientConfig)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, client.Run(ctx))
	assert.Nil(t, client.Connection())
}
