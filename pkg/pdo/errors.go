package pdo

import "fmt"

// InvalidPDONumberError reports a PDO channel number outside [0, 511].
type InvalidPDONumberError struct {
	Value uint16
}

func (e *InvalidPDONumberError) Error() string {
	return fmt.Sprintf("pdo: invalid PDO number %d: must be between 0 and 511", e.Value)
}

// InvalidSyncIntervalError reports an out-of-range "synchronous cyclic"
// transmission-type interval for a TPDO.
type InvalidSyncIntervalError struct {
	Value uint8
}

func (e *InvalidSyncIntervalError) Error() string {
	return fmt.Sprintf("pdo: invalid synchronous transmission interval %d: must be between 1 and 240", e.Value)
}

// InhibitTimeNotSupportedError reports that a node's communication parameter
// record has too few sub-indices to carry an inhibit time, but the caller
// asked to set one anyway.
type InhibitTimeNotSupportedError struct{}

func (e *InhibitTimeNotSupportedError) Error() string {
	return "pdo: device does not support an inhibit time for this PDO"
}

// DeadlineTimerNotSupportedError reports that a node's RPDO communication
// record has too few sub-indices to carry a deadline timer.
type DeadlineTimerNotSupportedError struct{}

func (e *DeadlineTimerNotSupportedError) Error() string {
	return "pdo: device does not support a deadline timer for this RPDO"
}

// EventTimerNotSupportedError is the TPDO analog of DeadlineTimerNotSupportedError:
// the TPDO communication record has too few sub-indices to carry an event timer.
type EventTimerNotSupportedError struct{}

func (e *EventTimerNotSupportedError) Error() string {
	return "pdo: device does not support an event timer for this TPDO"
}

// StartSyncNotSupportedError reports that a device's TPDO communication
// record has too few sub-indices to carry a start-sync counter.
type StartSyncNotSupportedError struct{}

func (e *StartSyncNotSupportedError) Error() string {
	return "pdo: device does not support a start-sync counter for this TPDO"
}
