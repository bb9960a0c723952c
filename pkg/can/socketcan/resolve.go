// Package socketcan implements the Linux SocketCAN transport: a raw
// PF_CAN/SOCK_RAW/CAN_RAW socket bound to a single interface (or to all
// interfaces), with synchronous and runtime-netpoller-suspending
// asynchronous send/receive.
package socketcan

import (
	"fmt"
	"net"

	"github.com/canlink-go/cankit/pkg/can"
	"golang.org/x/sys/unix"
)

// ResolveInterface resolves name to a can.Interface. It tries net.InterfaceByName
// first (the path the teacher's socketcanv2/v3 use) and falls back to a raw
// SIOCGIFINDEX ioctl on sock when name resolution through the net package
// fails for a CAN-only interface that /proc/net/if_inet6 style lookups don't
// cover on some minimal kernels.
func ResolveInterface(sock int, name string) (can.Interface, error) {
	if iface, err := net.InterfaceByName(name); err == nil {
		return can.NewInterface(name, iface.Index), nil
	}

	ifreq, err := unix.NewIfreq(name)
	if err != nil {
		return can.Interface{}, fmt.Errorf("socketcan: resolve interface %q: %w", name, err)
	}
	if err := unix.IoctlIfreq(sock, unix.SIOCGIFINDEX, ifreq); err != nil {
		return can.Interface{}, fmt.Errorf("socketcan: resolve interface %q: %w", name, err)
	}
	return can.NewInterface(name, int(ifreq.Uint32())), nil
}
