package sync

import (
	"context"
	"testing"
	"time"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/canlink-go/cankit/pkg/can/virtual"
	"github.com/canlink-go/cankit/pkg/router"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *virtual.Port) {
	t.Helper()
	bus := virtual.NewBus()
	clientPort := bus.Open(8)
	observerPort := bus.Open(8)
	t.Cleanup(func() {
		clientPort.Close()
		observerPort.Close()
	})

	r := router.New(clientPort)
	r.Start(context.Background())
	t.Cleanup(r.Stop)

	return NewClient(r), observerPort
}

func TestSendWithNoCounter(t *testing.T) {
	client, observer := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, client.Send(ctx))

	frame, err := observer.Recv(ctx)
	require.NoError(t, err)
	id, err := can.NewStandardCanID(cobID)
	require.NoError(t, err)
	require.True(t, frame.ID().Equal(id))
	require.Equal(t, uint8(0), frame.DataLengthCode())
}

func TestSendWithCounter(t *testing.T) {
	client, observer := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, client.SendWithCounter(ctx, 17))

	frame, err := observer.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{17}, frame.Data())
}

func TestSendWithCounterRejectsOutOfRange(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := client.SendWithCounter(ctx, 0)
	require.Error(t, err)
	var invalid *InvalidCounterError
	require.ErrorAs(t, err, &invalid)

	err = client.SendWithCounter(ctx, 241)
	require.Error(t, err)
	require.ErrorAs(t, err, &invalid)
}
