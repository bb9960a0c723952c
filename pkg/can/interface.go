package can

import "fmt"

// Interface identifies a CAN network interface by its kernel ifindex. Index 0
// is the wildcard used when binding a socket to "all interfaces" rather than
// one named device (spec §6.1).
type Interface struct {
	name  string
	index int
}

// AllInterfaces is the wildcard Interface value (index 0, no name) used to
// bind a raw socket across every CAN interface on the host.
var AllInterfaces = Interface{}

// NewInterface pairs a resolved name and ifindex. Resolution itself (name to
// index or back) is performed by pkg/can/socketcan, which has the syscalls.
func NewInterface(name string, index int) Interface {
	return Interface{name: name, index: index}
}

// Name returns the interface's device name, empty for AllInterfaces.
func (i Interface) Name() string { return i.name }

// Index returns the kernel ifindex, 0 for AllInterfaces.
func (i Interface) Index() int { return i.index }

// IsAll reports whether this is the wildcard "all interfaces" value.
func (i Interface) IsAll() bool { return i.index == 0 }

func (i Interface) String() string {
	if i.IsAll() {
		return "all-interfaces"
	}
	return fmt.Sprintf("%s(%d)", i.name, i.index)
}
