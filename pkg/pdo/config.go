package pdo

import (
	"context"
	"fmt"

	"github.com/canlink-go/cankit/pkg/sdo"
)

// Client reads and writes PDO communication and mapping parameters on a
// single node over SDO.
type Client struct {
	sdo *sdo.Client
}

// NewClient wraps sdoClient for PDO configuration.
func NewClient(sdoClient *sdo.Client) *Client {
	return &Client{sdo: sdoClient}
}

// ReadRPDOCommunicationParameters reads RPDO number n's communication
// record. Sub-indices 3 (inhibit time) and 5 (deadline timer) are optional:
// they are read only when sub-index 0 covers them, and returned as zero otherwise.
func (c *Client) ReadRPDOCommunicationParameters(ctx context.Context, n uint16) (RPDOCommunicationParameters, error) {
	if err := checkPDONumber(n); err != nil {
		return RPDOCommunicationParameters{}, err
	}
	index := rpdoCommunicationIndex(n)

	validSubindices, err := c.sdo.UploadUint8(ctx, index, 0)
	if err != nil {
		return RPDOCommunicationParameters{}, fmt.Errorf("pdo: read RPDO %d valid sub-indices: %w", n, err)
	}
	rawCOBID, err := c.sdo.UploadUint32(ctx, index, 1)
	if err != nil {
		return RPDOCommunicationParameters{}, fmt.Errorf("pdo: read RPDO %d COB-ID: %w", n, err)
	}
	transmissionType, err := c.sdo.UploadUint8(ctx, index, 2)
	if err != nil {
		return RPDOCommunicationParameters{}, fmt.Errorf("pdo: read RPDO %d transmission type: %w", n, err)
	}
	var inhibitTime, deadlineTimer uint16
	if validSubindices >= 3 {
		if inhibitTime, err = c.sdo.UploadUint16(ctx, index, 3); err != nil {
			return RPDOCommunicationParameters{}, fmt.Errorf("pdo: read RPDO %d inhibit time: %w", n, err)
		}
	}
	if validSubindices >= 5 {
		if deadlineTimer, err = c.sdo.UploadUint16(ctx, index, 5); err != nil {
			return RPDOCommunicationParameters{}, fmt.Errorf("pdo: read RPDO %d deadline timer: %w", n, err)
		}
	}

	enabled, id, err := decodeRPDOCOBID(rawCOBID)
	if err != nil {
		return RPDOCommunicationParameters{}, fmt.Errorf("pdo: decode RPDO %d COB-ID: %w", n, err)
	}
	return RPDOCommunicationParameters{
		Enabled:          enabled,
		COBID:            id,
		TransmissionType: RPDOTransmissionType(transmissionType),
		InhibitTime100us: inhibitTime,
		DeadlineTimerMs:  deadlineTimer,
	}, nil
}

// ReadTPDOCommunicationParameters reads TPDO number n's communication
// record. Sub-indices 3, 5 and 6 are optional: they are read only when
// sub-index 0 covers them, and returned as zero otherwise.
func (c *Client) ReadTPDOCommunicationParameters(ctx context.Context, n uint16) (TPDOCommunicationParameters, error) {
	if err := checkPDONumber(n); err != nil {
		return TPDOCommunicationParameters{}, err
	}
	index := tpdoCommunicationIndex(n)

	validSubindices, err := c.sdo.UploadUint8(ctx, index, 0)
	if err != nil {
		return TPDOCommunicationParameters{}, fmt.Errorf("pdo: read TPDO %d valid sub-indices: %w", n, err)
	}
	rawCOBID, err := c.sdo.UploadUint32(ctx, index, 1)
	if err != nil {
		return TPDOCommunicationParameters{}, fmt.Errorf("pdo: read TPDO %d COB-ID: %w", n, err)
	}
	transmissionType, err := c.sdo.UploadUint8(ctx, index, 2)
	if err != nil {
		return TPDOCommunicationParameters{}, fmt.Errorf("pdo: read TPDO %d transmission type: %w", n, err)
	}
	var inhibitTime, eventTimer uint16
	var startSync uint8
	if validSubindices >= 3 {
		if inhibitTime, err = c.sdo.UploadUint16(ctx, index, 3); err != nil {
			return TPDOCommunicationParameters{}, fmt.Errorf("pdo: read TPDO %d inhibit time: %w", n, err)
		}
	}
	if validSubindices >= 5 {
		if eventTimer, err = c.sdo.UploadUint16(ctx, index, 5); err != nil {
			return TPDOCommunicationParameters{}, fmt.Errorf("pdo: read TPDO %d event timer: %w", n, err)
		}
	}
	if validSubindices >= 6 {
		if startSync, err = c.sdo.UploadUint8(ctx, index, 6); err != nil {
			return TPDOCommunicationParameters{}, fmt.Errorf("pdo: read TPDO %d start-sync: %w", n, err)
		}
	}

	enabled, rtrAllowed, id, err := decodeTPDOCOBID(rawCOBID)
	if err != nil {
		return TPDOCommunicationParameters{}, fmt.Errorf("pdo: decode TPDO %d COB-ID: %w", n, err)
	}
	return TPDOCommunicationParameters{
		Enabled:          enabled,
		RTRAllowed:       rtrAllowed,
		COBID:            id,
		TransmissionType: TPDOTransmissionType(transmissionType),
		InhibitTime100us: inhibitTime,
		EventTimerMs:     eventTimer,
		StartSync:        startSync,
	}, nil
}

// ReadMapping reads the mapping record at objectIndex: sub-index 0 gives the
// number of mapped entries, sub-indices 1..count give the entries themselves.
func (c *Client) ReadMapping(ctx context.Context, objectIndex uint16) ([]Mapping, error) {
	count, err := c.sdo.UploadUint8(ctx, objectIndex, 0)
	if err != nil {
		return nil, fmt.Errorf("pdo: read mapping count at 0x%04X: %w", objectIndex, err)
	}
	mappings := make([]Mapping, 0, count)
	for i := uint8(1); i <= count; i++ {
		raw, err := c.sdo.UploadUint32(ctx, objectIndex, i)
		if err != nil {
			return nil, fmt.Errorf("pdo: read mapping entry %d at 0x%04X: %w", i, objectIndex, err)
		}
		mappings = append(mappings, mappingFromRaw(raw))
	}
	return mappings, nil
}

// ReadRPDOConfiguration reads RPDO number n's communication parameters and
// mapping together.
func (c *Client) ReadRPDOConfiguration(ctx context.Context, n uint16) (RPDOConfiguration, error) {
	communication, err := c.ReadRPDOCommunicationParameters(ctx, n)
	if err != nil {
		return RPDOConfiguration{}, err
	}
	mapping, err := c.ReadMapping(ctx, rpdoMappingIndex(n))
	if err != nil {
		return RPDOConfiguration{}, err
	}
	return RPDOConfiguration{Communication: communication, Mapping: mapping}, nil
}

// ReadTPDOConfiguration reads TPDO number n's communication parameters and
// mapping together.
func (c *Client) ReadTPDOConfiguration(ctx context.Context, n uint16) (TPDOConfiguration, error) {
	communication, err := c.ReadTPDOCommunicationParameters(ctx, n)
	if err != nil {
		return TPDOConfiguration{}, err
	}
	mapping, err := c.ReadMapping(ctx, tpdoMappingIndex(n))
	if err != nil {
		return TPDOConfiguration{}, err
	}
	return TPDOConfiguration{Communication: communication, Mapping: mapping}, nil
}

// EnableRPDO clears the disable bit on RPDO number n's COB-ID, leaving the
// rest of the value untouched.
func (c *Client) EnableRPDO(ctx context.Context, n uint16) error {
	return c.setRPDOEnabled(ctx, n, true)
}

// DisableRPDO sets the disable bit on RPDO number n's COB-ID.
func (c *Client) DisableRPDO(ctx context.Context, n uint16) error {
	return c.setRPDOEnabled(ctx, n, false)
}

func (c *Client) setRPDOEnabled(ctx context.Context, n uint16, enabled bool) error {
	if err := checkPDONumber(n); err != nil {
		return err
	}
	index := rpdoCommunicationIndex(n)
	raw, err := c.sdo.UploadUint32(ctx, index, 1)
	if err != nil {
		return fmt.Errorf("pdo: read RPDO %d COB-ID: %w", n, err)
	}
	if enabled {
		raw &^= 1 << 31
	} else {
		raw |= 1 << 31
	}
	if err := c.sdo.DownloadUint32(ctx, index, 1, raw); err != nil {
		return fmt.Errorf("pdo: write RPDO %d COB-ID: %w", n, err)
	}
	return nil
}

// EnableTPDO clears the disable bit on TPDO number n's COB-ID.
func (c *Client) EnableTPDO(ctx context.Context, n uint16) error {
	return c.setTPDOEnabled(ctx, n, true)
}

// DisableTPDO sets the disable bit on TPDO number n's COB-ID.
func (c *Client) DisableTPDO(ctx context.Context, n uint16) error {
	return c.setTPDOEnabled(ctx, n, false)
}

func (c *Client) setTPDOEnabled(ctx context.Context, n uint16, enabled bool) error {
	if err := checkPDONumber(n); err != nil {
		return err
	}
	index := tpdoCommunicationIndex(n)
	raw, err := c.sdo.UploadUint32(ctx, index, 1)
	if err != nil {
		return fmt.Errorf("pdo: read TPDO %d COB-ID: %w", n, err)
	}
	if enabled {
		raw &^= 1 << 31
	} else {
		raw |= 1 << 31
	}
	if err := c.sdo.DownloadUint32(ctx, index, 1, raw); err != nil {
		return fmt.Errorf("pdo: write TPDO %d COB-ID: %w", n, err)
	}
	return nil
}

// WriteRPDOCommunicationParameters writes params to RPDO number n. The
// COB-ID is always written with the disable bit set, regardless of
// params.Enabled: callers that want the PDO active call EnableRPDO
// afterward (see ConfigureRPDO), so a COB-ID write never transiently
// activates a half-written configuration.
func (c *Client) WriteRPDOCommunicationParameters(ctx context.Context, n uint16, params RPDOCommunicationParameters) error {
	if err := checkPDONumber(n); err != nil {
		return err
	}
	index := rpdoCommunicationIndex(n)

	validSubindices, err := c.sdo.UploadUint32(ctx, index, 0)
	if err != nil {
		return fmt.Errorf("pdo: read RPDO %d valid sub-indices: %w", n, err)
	}
	if validSubindices < 3 && params.InhibitTime100us > 0 {
		return &InhibitTimeNotSupportedError{}
	}
	if validSubindices < 5 && params.DeadlineTimerMs > 0 {
		return &DeadlineTimerNotSupportedError{}
	}

	rawCOBID := encodeRPDOCOBID(false, params.COBID)
	if err := c.sdo.DownloadUint32(ctx, index, 1, rawCOBID); err != nil {
		return fmt.Errorf("pdo: write RPDO %d COB-ID: %w", n, err)
	}
	if err := c.sdo.DownloadUint8(ctx, index, 2, uint8(params.TransmissionType)); err != nil {
		return fmt.Errorf("pdo: write RPDO %d transmission type: %w", n, err)
	}
	if validSubindices >= 3 {
		if err := c.sdo.DownloadUint16(ctx, index, 3, params.InhibitTime100us); err != nil {
			return fmt.Errorf("pdo: write RPDO %d inhibit time: %w", n, err)
		}
	}
	if validSubindices >= 5 {
		if err := c.sdo.DownloadUint16(ctx, index, 5, params.DeadlineTimerMs); err != nil {
			return fmt.Errorf("pdo: write RPDO %d deadline timer: %w", n, err)
		}
	}
	return nil
}

// WriteTPDOCommunicationParameters is WriteRPDOCommunicationParameters's
// TPDO analog, additionally carrying the RTR-allowed bit and start-sync
// counter.
func (c *Client) WriteTPDOCommunicationParameters(ctx context.Context, n uint16, params TPDOCommunicationParameters) error {
	if err := checkPDONumber(n); err != nil {
		return err
	}
	index := tpdoCommunicationIndex(n)

	validSubindices, err := c.sdo.UploadUint32(ctx, index, 0)
	if err != nil {
		return fmt.Errorf("pdo: read TPDO %d valid sub-indices: %w", n, err)
	}
	if validSubindices < 3 && params.InhibitTime100us > 0 {
		return &InhibitTimeNotSupportedError{}
	}
	if validSubindices < 5 && params.EventTimerMs > 0 {
		return &EventTimerNotSupportedError{}
	}
	if validSubindices < 6 && params.StartSync > 0 {
		return &StartSyncNotSupportedError{}
	}

	rawCOBID := encodeTPDOCOBID(false, params.RTRAllowed, params.COBID)
	if err := c.sdo.DownloadUint32(ctx, index, 1, rawCOBID); err != nil {
		return fmt.Errorf("pdo: write TPDO %d COB-ID: %w", n, err)
	}
	if err := c.sdo.DownloadUint8(ctx, index, 2, uint8(params.TransmissionType)); err != nil {
		return fmt.Errorf("pdo: write TPDO %d transmission type: %w", n, err)
	}
	if validSubindices >= 3 {
		if err := c.sdo.DownloadUint16(ctx, index, 3, params.InhibitTime100us); err != nil {
			return fmt.Errorf("pdo: write TPDO %d inhibit time: %w", n, err)
		}
	}
	if validSubindices >= 5 {
		if err := c.sdo.DownloadUint16(ctx, index, 5, params.EventTimerMs); err != nil {
			return fmt.Errorf("pdo: write TPDO %d event timer: %w", n, err)
		}
	}
	if validSubindices >= 6 {
		if err := c.sdo.DownloadUint8(ctx, index, 6, params.StartSync); err != nil {
			return fmt.Errorf("pdo: write TPDO %d start-sync: %w", n, err)
		}
	}
	return nil
}

// WriteMapping replaces the mapping record at objectIndex with mappings,
// clearing the entry count to 0 first so an interrupted write never leaves
// the device reading the old count against partially-written entries.
func (c *Client) WriteMapping(ctx context.Context, objectIndex uint16, mappings []Mapping) error {
	if err := c.sdo.DownloadUint8(ctx, objectIndex, 0, 0); err != nil {
		return fmt.Errorf("pdo: clear mapping count at 0x%04X: %w", objectIndex, err)
	}
	for i, mapping := range mappings {
		if err := c.sdo.DownloadUint32(ctx, objectIndex, uint8(i+1), mapping.raw()); err != nil {
			return fmt.Errorf("pdo: write mapping entry %d at 0x%04X: %w", i+1, objectIndex, err)
		}
	}
	if err := c.sdo.DownloadUint8(ctx, objectIndex, 0, uint8(len(mappings))); err != nil {
		return fmt.Errorf("pdo: set mapping count at 0x%04X: %w", objectIndex, err)
	}
	return nil
}

// ConfigureRPDO applies config to RPDO number n: disable, rewrite the
// communication and mapping records, then re-enable if config asks for it.
// The PDO is never left readable mid-update with a mix of old and new
// mapping entries.
func (c *Client) ConfigureRPDO(ctx context.Context, n uint16, config RPDOConfiguration) error {
	if err := c.DisableRPDO(ctx, n); err != nil {
		return err
	}
	if err := c.WriteRPDOCommunicationParameters(ctx, n, config.Communication); err != nil {
		return err
	}
	if err := c.WriteMapping(ctx, rpdoMappingIndex(n), config.Mapping); err != nil {
		return err
	}
	if config.Communication.Enabled {
		return c.EnableRPDO(ctx, n)
	}
	return nil
}

// ConfigureTPDO is ConfigureRPDO's TPDO analog.
func (c *Client) ConfigureTPDO(ctx context.Context, n uint16, config TPDOConfiguration) error {
	if err := c.DisableTPDO(ctx, n); err != nil {
		return err
	}
	if err := c.WriteTPDOCommunicationParameters(ctx, n, config.Communication); err != nil {
		return err
	}
	if err := c.WriteMapping(ctx, tpdoMappingIndex(n), config.Mapping); err != nil {
		return err
	}
	if config.Communication.Enabled {
		return c.EnableTPDO(ctx, n)
	}
	return nil
}
