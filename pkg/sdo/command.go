package sdo

import "encoding/binary"

// clientCommand identifies the SDO command specifier a client sends.
type clientCommand uint8

const (
	clientSegmentDownload  clientCommand = 0
	clientInitiateDownload clientCommand = 1
	clientInitiateUpload   clientCommand = 2
	clientSegmentUpload    clientCommand = 3
	clientAbortTransfer    clientCommand = 4
)

// serverCommand identifies the SDO command specifier a server responds with.
type serverCommand uint8

const (
	serverSegmentUpload    serverCommand = 0
	serverSegmentDownload  serverCommand = 1
	serverInitiateUpload   serverCommand = 2
	serverInitiateDownload serverCommand = 3
	serverAbortTransfer    serverCommand = 4
)

func getServerCommand(data []byte) serverCommand {
	return serverCommand(data[0] >> 5)
}

// checkServerCommand validates that data carries expected as its command,
// translating an abort response into an *AbortedError.
func checkServerCommand(data []byte, expected serverCommand, nodeID uint8, index uint16, subIndex uint8) error {
	if len(data) < 8 {
		return &MalformedResponseError{Reason: "response frame shorter than 8 bytes"}
	}
	got := getServerCommand(data)
	if got == expected {
		return nil
	}
	if got == serverAbortTransfer {
		return &AbortedError{
			NodeID:   nodeID,
			Index:    index,
			SubIndex: subIndex,
			Reason:   AbortReason(binary.LittleEndian.Uint32(data[4:8])),
		}
	}
	return &UnexpectedCommandError{Expected: uint8(expected), Actual: uint8(got)}
}

// buildInitiateUploadRequest builds the client->server "initiate upload"
// request for object (index, subIndex).
func buildInitiateUploadRequest(index uint16, subIndex uint8) [8]byte {
	var data [8]byte
	data[0] = uint8(clientInitiateUpload) << 5
	binary.LittleEndian.PutUint16(data[1:3], index)
	data[3] = subIndex
	return data
}

// buildSegmentUploadRequest builds the client->server "upload segment"
// request with the given toggle bit.
func buildSegmentUploadRequest(toggle bool) [8]byte {
	var data [8]byte
	data[0] = uint8(clientSegmentUpload) << 5
	if toggle {
		data[0] |= 0x10
	}
	return data
}

// parseInitiateUploadResponse interprets a server "initiate upload" response.
// If expedited, payload holds the final data directly. Otherwise segmented
// is true and length holds the advertised total length.
func parseInitiateUploadResponse(data []byte, nodeID uint8, index uint16, subIndex uint8) (payload []byte, segmented bool, length uint32, err error) {
	if err := checkServerCommand(data, serverInitiateUpload, nodeID, index, subIndex); err != nil {
		return nil, false, 0, err
	}

	n := (data[0] >> 2) & 0x03
	expedited := data[0]&0x02 != 0
	sizeSet := data[0]&0x01 != 0

	if expedited {
		n := int(n)
		l := 4
		if sizeSet {
			l = 4 - n
		}
		if l < 0 || l > 4 {
			return nil, false, 0, &MalformedResponseError{Reason: "invalid expedited data length"}
		}
		return append([]byte(nil), data[4:4+l]...), false, 0, nil
	}
	if !sizeSet {
		return nil, false, 0, &MalformedResponseError{Reason: "neither expedited nor size-set flag was set"}
	}
	return nil, true, binary.LittleEndian.Uint32(data[4:8]), nil
}

// parseSegmentUploadResponse interprets a server "upload segment" response.
func parseSegmentUploadResponse(data []byte, expectedToggle bool, nodeID uint8, index uint16, subIndex uint8) (segment []byte, complete bool, err error) {
	if err := checkServerCommand(data, serverSegmentUpload, nodeID, index, subIndex); err != nil {
		return nil, false, err
	}
	toggle := data[0]&0x10 != 0
	if toggle != expectedToggle {
		return nil, false, &ToggleMismatchError{}
	}
	n := (data[0] >> 1) & 0x07
	complete = data[0]&0x01 != 0
	length := 7 - int(n)
	if length < 0 || length > 7 {
		return nil, false, &MalformedResponseError{Reason: "invalid segment data length"}
	}
	return append([]byte(nil), data[1:1+length]...), complete, nil
}

// buildExpeditedDownloadRequest builds the client->server expedited download
// (write) request. payload must be at most 4 bytes.
func buildExpeditedDownloadRequest(index uint16, subIndex uint8, payload []byte) [8]byte {
	n := uint8(4 - len(payload))
	var data [8]byte
	data[0] = uint8(clientInitiateDownload)<<5 | n<<2 | 0x03
	binary.LittleEndian.PutUint16(data[1:3], index)
	data[3] = subIndex
	copy(data[4:4+len(payload)], payload)
	return data
}

// buildInitiateSegmentedDownloadRequest builds the client->server
// "initiate segmented download" request advertising the total length.
func buildInitiateSegmentedDownloadRequest(index uint16, subIndex uint8, length uint32) [8]byte {
	var data [8]byte
	data[0] = uint8(clientInitiateDownload)<<5 | 0x01
	binary.LittleEndian.PutUint16(data[1:3], index)
	data[3] = subIndex
	binary.LittleEndian.PutUint32(data[4:8], length)
	return data
}

// buildSegmentDownloadRequest builds one download-segment chunk (at most 7
// bytes of payload).
func buildSegmentDownloadRequest(toggle, complete bool, chunk []byte) [8]byte {
	n := uint8(7 - len(chunk))
	var data [8]byte
	data[0] = uint8(clientSegmentDownload) << 5
	if toggle {
		data[0] |= 0x10
	}
	data[0] |= n << 1
	if complete {
		data[0] |= 0x01
	}
	copy(data[1:1+len(chunk)], chunk)
	return data
}

// buildAbortTransferRequest builds the client->server abort-transfer frame.
func buildAbortTransferRequest(index uint16, subIndex uint8, reason AbortReason) [8]byte {
	var data [8]byte
	data[0] = uint8(clientAbortTransfer) << 5
	binary.LittleEndian.PutUint16(data[1:3], index)
	data[3] = subIndex
	binary.LittleEndian.PutUint32(data[4:8], uint32(reason))
	return data
}
