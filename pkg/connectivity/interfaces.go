package connectivity

import (
	"context"
	"net"
)

// hostInterface is the subset of net.Interface state the check relies on.
type hostInterface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

type interfaceLister func() ([]hostInterface, error)

// InterfaceChecker inspects the host interface table. The host counts as online
// when at least one interface is up, is not a loopback, and carries a global
// unicast address.
type InterfaceChecker struct {
	list interfaceLister
}

func NewInterfaceChecker() *InterfaceChecker {
	return &InterfaceChecker{list: systemInterfaces}
}

func (c *InterfaceChecker) IsInternetAvailable(ctx context.Context) bool {
	if c == nil || c.list == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	return guard(func() bool {
		ifaces, err := c.list()
		if err != nil {
			return false
		}
		for _, iface := range ifaces {
			if usable(iface) {
				return true
			}
		}
		return false
	})
}

func usable(iface hostInterface) bool {
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
		return false
	}
	for _, addr := range iface.Addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip != nil && ip.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

func systemInterfaces() ([]hostInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]hostInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			// an interface we cannot read is treated as having no addresses
			addrs = nil
		}
		out = append(out, hostInterface{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return out, nil
}
