package pdo

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/canlink-go/cankit/pkg/can"
	"github.com/canlink-go/cankit/pkg/can/virtual"
	"github.com/canlink-go/cankit/pkg/router"
	"github.com/canlink-go/cankit/pkg/sdo"
	"github.com/stretchr/testify/require"
)

const testNodeID uint8 = 0x03

type objectKey struct {
	index    uint16
	subIndex uint8
}

// fakeDevice answers expedited SDO upload/download requests against an
// in-memory object map, standing in for a real node's object dictionary.
// Every value this package's Client reads or writes fits in 4 bytes, so the
// responder never needs to speak the segmented transfer protocol.
type fakeDevice struct {
	mu      sync.Mutex
	objects map[objectKey][]byte
	port    *virtual.Port
}

func newFakeDevice(port *virtual.Port) *fakeDevice {
	return &fakeDevice{objects: make(map[objectKey][]byte), port: port}
}

func (d *fakeDevice) set(index uint16, subIndex uint8, value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[objectKey{index, subIndex}] = append([]byte(nil), value...)
}

func (d *fakeDevice) get(index uint16, subIndex uint8) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objects[objectKey{index, subIndex}]
}

// run serves requests until ctx is done.
func (d *fakeDevice) run(ctx context.Context) {
	requestID, _ := can.NewStandardCanID(0x600 + uint16(testNodeID))
	responseID, _ := can.NewStandardCanID(0x580 + uint16(testNodeID))

	for {
		frame, err := d.port.Recv(ctx)
		if err != nil {
			return
		}
		if !frame.ID().Equal(requestID) {
			continue
		}
		data := frame.Data()
		if len(data) != 8 {
			continue
		}
		ccs := data[0] >> 5
		index := binary.LittleEndian.Uint16(data[1:3])
		subIndex := data[3]

		var resp [8]byte
		switch ccs {
		case 2: // initiate upload
			value := d.get(index, subIndex)
			n := uint8(4 - len(value))
			resp[0] = 2<<5 | n<<2 | 0x03
			binary.LittleEndian.PutUint16(resp[1:3], index)
			resp[3] = subIndex
			copy(resp[4:4+len(value)], value)
		case 1: // initiate download, expedited
			n := (data[0] >> 2) & 0x03
			length := 4 - int(n)
			d.set(index, subIndex, data[4:4+length])
			resp[0] = 3 << 5
			binary.LittleEndian.PutUint16(resp[1:3], index)
			resp[3] = subIndex
		default:
			continue
		}

		respFrame, err := can.NewFrame(responseID, resp[:])
		if err != nil {
			continue
		}
		_ = d.port.Send(ctx, respFrame)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeDevice) {
	t.Helper()
	bus := virtual.NewBus()
	clientPort := bus.Open(16)
	devicePort := bus.Open(16)
	t.Cleanup(func() {
		clientPort.Close()
		devicePort.Close()
	})

	r := router.New(clientPort)
	r.Start(context.Background())
	t.Cleanup(r.Stop)

	device := newFakeDevice(devicePort)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go device.run(ctx)

	sdoClient := sdo.NewClient(r, testNodeID, sdo.WithTimeout(200*time.Millisecond))
	return NewClient(sdoClient), device
}

func putUint32(v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return buf[:]
}

func TestReadWriteRPDOCommunicationParameters(t *testing.T) {
	client, device := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	index := rpdoCommunicationIndex(0)
	device.set(index, 0, []byte{5}) // valid sub-indices, read back as a uint8
	device.set(index, 1, putUint32(0x8000_0201))
	device.set(index, 2, []byte{0})
	device.set(index, 3, []byte{0x10, 0x00})
	device.set(index, 5, []byte{0x20, 0x00})

	params, err := client.ReadRPDOCommunicationParameters(ctx, 0)
	require.NoError(t, err)
	require.False(t, params.Enabled)
	require.True(t, params.COBID.IsStandard())
	require.Equal(t, uint32(0x201), params.COBID.AsU32())
	require.Equal(t, SynchronousRPDO(), params.TransmissionType)
	require.Equal(t, uint16(0x10), params.InhibitTime100us)
	require.Equal(t, uint16(0x20), params.DeadlineTimerMs)

	// WriteRPDOCommunicationParameters reads sub-index 0 back as a uint32: some
	// devices report the valid-sub-indices count wider than a single byte.
	device.set(index, 0, putUint32(5))

	id, err := can.NewStandardCanID(0x300)
	require.NoError(t, err)
	writeParams := RPDOCommunicationParameters{
		Enabled:          true,
		COBID:            id,
		TransmissionType: SynchronousRPDO(),
	}
	require.NoError(t, client.WriteRPDOCommunicationParameters(ctx, 0, writeParams))

	raw := binary.LittleEndian.Uint32(device.get(index, 1))
	require.Equal(t, uint32(0x8000_0300), raw, "COB-ID write must keep the disable bit set")
}

func TestConfigureRPDOAtomicEnableSequence(t *testing.T) {
	client, device := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	commIndex := rpdoCommunicationIndex(1)
	mappingIndex := rpdoMappingIndex(1)
	device.set(commIndex, 0, putUint32(5))
	device.set(commIndex, 1, putUint32(0x8000_0201))
	device.set(commIndex, 2, []byte{0})

	id, err := can.NewStandardCanID(0x201)
	require.NoError(t, err)
	config := RPDOConfiguration{
		Communication: RPDOCommunicationParameters{
			Enabled:          true,
			COBID:            id,
			TransmissionType: SynchronousRPDO(),
		},
		Mapping: []Mapping{
			{Index: 0x6000, SubIndex: 1, BitLength: 8},
			{Index: 0x6000, SubIndex: 2, BitLength: 16},
		},
	}

	require.NoError(t, client.ConfigureRPDO(ctx, 1, config))

	raw := binary.LittleEndian.Uint32(device.get(commIndex, 1))
	require.Equal(t, uint32(0)+uint32(0x201), raw, "PDO must end up enabled after ConfigureRPDO")

	count := device.get(mappingIndex, 0)
	require.Equal(t, []byte{2}, count)
	entry1 := binary.LittleEndian.Uint32(device.get(mappingIndex, 1))
	require.Equal(t, Mapping{Index: 0x6000, SubIndex: 1, BitLength: 8}, mappingFromRaw(entry1))
}

func TestTPDOTransmissionTypeHelpers(t *testing.T) {
	tt, err := SynchronousTPDO(16)
	require.NoError(t, err)
	interval, ok := tt.IsSynchronous()
	require.True(t, ok)
	require.Equal(t, uint8(16), interval)

	_, err = SynchronousTPDO(0)
	require.Error(t, err)

	rtr := RTROnlyTPDO(true)
	synchronous, ok := rtr.IsRTROnly()
	require.True(t, ok)
	require.True(t, synchronous)

	event := EventDrivenTPDO(false)
	manufacturerSpecific, ok := event.IsEventDriven()
	require.True(t, ok)
	require.False(t, manufacturerSpecific)
}

func TestInvalidPDONumber(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.ReadRPDOCommunicationParameters(context.Background(), 512)
	require.Error(t, err)
	var invalid *InvalidPDONumberError
	require.ErrorAs(t, err, &invalid)
}
