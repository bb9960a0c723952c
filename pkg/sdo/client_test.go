package sdo

import (
	"context"
	"testing"
	"time"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/canlink-go/cankit/pkg/can/virtual"
	"github.com/canlink-go/cankit/pkg/deadline"
	"github.com/canlink-go/cankit/pkg/router"
	"github.com/stretchr/testify/require"
)

const testNodeID uint8 = 0x05

// testHarness wires a Client to a fake SDO server over an in-memory bus. The
// server reads each request frame handed to it by the test and replies via
// reply; it never runs unattended logic.
type testHarness struct {
	t          *testing.T
	client     *Client
	serverPort *virtual.Port
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	bus := virtual.NewBus()
	clientPort := bus.Open(8)
	serverPort := bus.Open(8)
	t.Cleanup(func() {
		clientPort.Close()
		serverPort.Close()
	})

	r := router.New(clientPort)
	r.Start(context.Background())
	t.Cleanup(r.Stop)

	client := NewClient(r, testNodeID, WithTimeout(200*time.Millisecond), WithClock(deadline.RealClock))
	return &testHarness{t: t, client: client, serverPort: serverPort}
}

// expectRequest reads the next client request frame addressed to the server.
func (h *testHarness) expectRequest(ctx context.Context) can.Frame {
	h.t.Helper()
	frame, err := h.serverPort.Recv(ctx)
	require.NoError(h.t, err)
	wantID, err := can.NewStandardCanID(requestCOBIDBase + uint16(testNodeID))
	require.NoError(h.t, err)
	require.True(h.t, frame.ID().Equal(wantID))
	return frame
}

// reply sends data back to the client as the server's response frame.
func (h *testHarness) reply(ctx context.Context, data [8]byte) {
	h.t.Helper()
	id, err := can.NewStandardCanID(responseCOBIDBase + uint16(testNodeID))
	require.NoError(h.t, err)
	frame, err := can.NewFrame(id, data[:])
	require.NoError(h.t, err)
	require.NoError(h.t, h.serverPort.Send(ctx, frame))
}

func TestUploadExpedited(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.expectRequest(ctx)
		var resp [8]byte
		resp[0] = uint8(serverInitiateUpload)<<5 | 0<<2 | 0x03
		resp[1], resp[2] = 0x34, 0x12
		resp[3] = 0x00
		copy(resp[4:8], []byte{0xAA, 0xBB, 0xCC, 0xDD})
		h.reply(ctx, resp)
	}()

	data, err := h.client.Upload(ctx, 0x1234, 0x00)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, data)
	<-done
}

func TestUploadSegmented(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fullData := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.expectRequest(ctx)
		var initResp [8]byte
		initResp[0] = uint8(serverInitiateUpload)<<5 | 0x01
		initResp[1], initResp[2] = 0x34, 0x12
		initResp[4] = byte(len(fullData))
		h.reply(ctx, initResp)

		toggle := false
		offset := 0
		for offset < len(fullData) {
			h.expectRequest(ctx)
			end := offset + segmentDataSize
			complete := false
			if end >= len(fullData) {
				end = len(fullData)
				complete = true
			}
			chunk := fullData[offset:end]
			n := uint8(7 - len(chunk))
			var resp [8]byte
			resp[0] = uint8(serverSegmentUpload) << 5
			if toggle {
				resp[0] |= 0x10
			}
			resp[0] |= n << 1
			if complete {
				resp[0] |= 0x01
			}
			copy(resp[1:1+len(chunk)], chunk)
			h.reply(ctx, resp)

			offset = end
			toggle = !toggle
		}
	}()

	data, err := h.client.Upload(ctx, 0x1234, 0x00)
	require.NoError(t, err)
	require.Equal(t, fullData, data)
	<-done
}

func TestUploadAborted(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.expectRequest(ctx)
		resp := buildAbortTransferRequest(0x1234, 0x00, AbortObjectDoesNotExist)
		resp[0] = uint8(serverAbortTransfer) << 5
		h.reply(ctx, resp)
	}()

	_, err := h.client.Upload(ctx, 0x1234, 0x00)
	require.Error(t, err)
	var aborted *AbortedError
	require.ErrorAs(t, err, &aborted)
	require.Equal(t, AbortObjectDoesNotExist, aborted.Reason)
	<-done
}

func TestUploadTimesOutWithNoServer(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.client.Upload(context.Background(), 0x1234, 0x00)
	require.Error(t, err)
}

func TestDownloadExpedited(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := h.expectRequest(ctx)
		require.Equal(t, []byte{0x01, 0x02, 0x03}, req.Data()[4:7])
		var resp [8]byte
		resp[0] = uint8(serverInitiateDownload) << 5
		resp[1], resp[2] = 0x34, 0x12
		h.reply(ctx, resp)
	}()

	err := h.client.Download(ctx, 0x1234, 0x00, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	<-done
}

func TestDownloadSegmented(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fullData := make([]byte, 10)
	for i := range fullData {
		fullData[i] = byte(i + 1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.expectRequest(ctx)
		var initResp [8]byte
		initResp[0] = uint8(serverInitiateDownload) << 5
		h.reply(ctx, initResp)

		toggle := false
		for {
			req := h.expectRequest(ctx)
			gotToggle := req.Data()[0]&0x10 != 0
			require.Equal(t, toggle, gotToggle)
			complete := req.Data()[0]&0x01 != 0

			var resp [8]byte
			resp[0] = uint8(serverSegmentDownload) << 5
			if toggle {
				resp[0] |= 0x10
			}
			h.reply(ctx, resp)

			toggle = !toggle
			if complete {
				break
			}
		}
	}()

	err := h.client.Download(ctx, 0x1234, 0x00, fullData)
	require.NoError(t, err)
	<-done
}
