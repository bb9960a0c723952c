package sdo

import (
	"context"
	"encoding/binary"
	"math"
)

// UploadUint8 reads object (index, subIndex) as an unsigned 8-bit integer.
func (c *Client) UploadUint8(ctx context.Context, index uint16, subIndex uint8) (uint8, error) {
	data, err := c.Upload(ctx, index, subIndex)
	if err != nil {
		return 0, err
	}
	if len(data) != 1 {
		return 0, &WrongDataCountError{Expected: 1, Actual: len(data)}
	}
	return data[0], nil
}

// UploadUint16 reads object (index, subIndex) as an unsigned 16-bit integer.
func (c *Client) UploadUint16(ctx context.Context, index uint16, subIndex uint8) (uint16, error) {
	data, err := c.Upload(ctx, index, subIndex)
	if err != nil {
		return 0, err
	}
	if len(data) != 2 {
		return 0, &WrongDataCountError{Expected: 2, Actual: len(data)}
	}
	return binary.LittleEndian.Uint16(data), nil
}

// UploadUint32 reads object (index, subIndex) as an unsigned 32-bit integer.
func (c *Client) UploadUint32(ctx context.Context, index uint16, subIndex uint8) (uint32, error) {
	data, err := c.Upload(ctx, index, subIndex)
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, &WrongDataCountError{Expected: 4, Actual: len(data)}
	}
	return binary.LittleEndian.Uint32(data), nil
}

// UploadUint64 reads object (index, subIndex) as an unsigned 64-bit integer.
func (c *Client) UploadUint64(ctx context.Context, index uint16, subIndex uint8) (uint64, error) {
	data, err := c.Upload(ctx, index, subIndex)
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, &WrongDataCountError{Expected: 8, Actual: len(data)}
	}
	return binary.LittleEndian.Uint64(data), nil
}

// UploadInt8 reads object (index, subIndex) as a signed 8-bit integer.
func (c *Client) UploadInt8(ctx context.Context, index uint16, subIndex uint8) (int8, error) {
	v, err := c.UploadUint8(ctx, index, subIndex)
	return int8(v), err
}

// UploadInt16 reads object (index, subIndex) as a signed 16-bit integer.
func (c *Client) UploadInt16(ctx context.Context, index uint16, subIndex uint8) (int16, error) {
	v, err := c.UploadUint16(ctx, index, subIndex)
	return int16(v), err
}

// UploadInt32 reads object (index, subIndex) as a signed 32-bit integer.
func (c *Client) UploadInt32(ctx context.Context, index uint16, subIndex uint8) (int32, error) {
	v, err := c.UploadUint32(ctx, index, subIndex)
	return int32(v), err
}

// UploadInt64 reads object (index, subIndex) as a signed 64-bit integer.
func (c *Client) UploadInt64(ctx context.Context, index uint16, subIndex uint8) (int64, error) {
	v, err := c.UploadUint64(ctx, index, subIndex)
	return int64(v), err
}

// UploadFloat32 reads object (index, subIndex) as an IEEE-754 single.
func (c *Client) UploadFloat32(ctx context.Context, index uint16, subIndex uint8) (float32, error) {
	v, err := c.UploadUint32(ctx, index, subIndex)
	return math.Float32frombits(v), err
}

// UploadFloat64 reads object (index, subIndex) as an IEEE-754 double.
func (c *Client) UploadFloat64(ctx context.Context, index uint16, subIndex uint8) (float64, error) {
	v, err := c.UploadUint64(ctx, index, subIndex)
	return math.Float64frombits(v), err
}

// UploadString reads object (index, subIndex) as a VISIBLE_STRING: raw bytes
// decoded as-is, no encoding conversion or NUL trimming beyond what the
// server actually sent.
func (c *Client) UploadString(ctx context.Context, index uint16, subIndex uint8) (string, error) {
	data, err := c.Upload(ctx, index, subIndex)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DownloadUint8 writes an unsigned 8-bit value to object (index, subIndex).
func (c *Client) DownloadUint8(ctx context.Context, index uint16, subIndex uint8, value uint8) error {
	return c.Download(ctx, index, subIndex, []byte{value})
}

// DownloadUint16 writes an unsigned 16-bit value to object (index, subIndex).
func (c *Client) DownloadUint16(ctx context.Context, index uint16, subIndex uint8, value uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	return c.Download(ctx, index, subIndex, buf[:])
}

// DownloadUint32 writes an unsigned 32-bit value to object (index, subIndex).
func (c *Client) DownloadUint32(ctx context.Context, index uint16, subIndex uint8, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return c.Download(ctx, index, subIndex, buf[:])
}

// DownloadUint64 writes an unsigned 64-bit value to object (index, subIndex).
func (c *Client) DownloadUint64(ctx context.Context, index uint16, subIndex uint8, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	return c.Download(ctx, index, subIndex, buf[:])
}

// DownloadInt8 writes a signed 8-bit value to object (index, subIndex).
func (c *Client) DownloadInt8(ctx context.Context, index uint16, subIndex uint8, value int8) error {
	return c.DownloadUint8(ctx, index, subIndex, uint8(value))
}

// DownloadInt16 writes a signed 16-bit value to object (index, subIndex).
func (c *Client) DownloadInt16(ctx context.Context, index uint16, subIndex uint8, value int16) error {
	return c.DownloadUint16(ctx, index, subIndex, uint16(value))
}

// DownloadInt32 writes a signed 32-bit value to object (index, subIndex).
func (c *Client) DownloadInt32(ctx context.Context, index uint16, subIndex uint8, value int32) error {
	return c.DownloadUint32(ctx, index, subIndex, uint32(value))
}

// DownloadInt64 writes a signed 64-bit value to object (index, subIndex).
func (c *Client) DownloadInt64(ctx context.Context, index uint16, subIndex uint8, value int64) error {
	return c.DownloadUint64(ctx, index, subIndex, uint64(value))
}

// DownloadFloat32 writes an IEEE-754 single to object (index, subIndex).
func (c *Client) DownloadFloat32(ctx context.Context, index uint16, subIndex uint8, value float32) error {
	return c.DownloadUint32(ctx, index, subIndex, math.Float32bits(value))
}

// DownloadFloat64 writes an IEEE-754 double to object (index, subIndex).
func (c *Client) DownloadFloat64(ctx context.Context, index uint16, subIndex uint8, value float64) error {
	return c.DownloadUint64(ctx, index, subIndex, math.Float64bits(value))
}

// DownloadString writes a VISIBLE_STRING to object (index, subIndex), the
// bytes of value unchanged.
func (c *Client) DownloadString(ctx context.Context, index uint16, subIndex uint8, value string) error {
	return c.Download(ctx, index, subIndex, []byte(value))
}

// DownloadBytes writes an arbitrary OCTET_STRING/DOMAIN payload to object
// (index, subIndex).
func (c *Client) DownloadBytes(ctx context.Context, index uint16, subIndex uint8, value []byte) error {
	return c.Download(ctx, index, subIndex, value)
}
