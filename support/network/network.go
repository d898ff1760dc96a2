// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package network contains generic network constants and utilities.
package network

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// ErrNoInterface is returned by ResolveInterface when no interface matches.
var ErrNoInterface = errors.New("could not identify an interface")

// ParseIP4Address parses the string, v, into an IPv4 address. If v failed to
// parse, or if v did not parse into an IPv4 address, an error will be returned.
func ParseIP4Address(v string) (net.IP, error) {
	ip := net.ParseIP(v)
	if ip == nil {
		return nil, errors.Errorf("could not parse IP address %q", v)
	}

	ip = ip.To4()
	if ip == nil {
		return nil, errors.Errorf("unable to get IPv4 address for %q", v)
	}

	return ip, nil
}

// Link is an IPv4 address on a local network interface.
type Link struct {
	// Interface is the network interface.
	Interface *net.Interface
	// Addr is the interface's address.
	Addr *net.IPNet
}

func (l *Link) String() string {
	switch {
	case l.Interface != nil && l.Addr != nil:
		return fmt.Sprintf("%s on %s", l.Addr, l.Interface.Name)
	case l.Interface != nil:
		return l.Interface.Name
	case l.Addr != nil:
		return l.Addr.String()
	default:
		return "unconfigured"
	}
}

// InterfaceOptions is the set of options to use when resolving a Link.
type InterfaceOptions struct {
	// If Interface is not empty, only addresses on the named interface will be
	// considered.
	Interface string

	// If TargetAddress is not empty, only an address whose network contains
	// TargetAddress will be considered. Loopback interfaces are skipped unless
	// a TargetAddress is supplied.
	TargetAddress string
}

// ResolveInterface chooses an interface and IPv4 address that is up and
// satisfies opts.
//
// If no interface qualifies, ResolveInterface returns ErrNoInterface.
func ResolveInterface(opts InterfaceOptions) (*Link, error) {
	var interfaces []net.Interface
	if opts.Interface != "" {
		iface, err := net.InterfaceByName(opts.Interface)
		if err != nil {
			return nil, errors.Wrapf(ErrNoInterface, "interface %q: %s", opts.Interface, err)
		}

		interfaces = []net.Interface{*iface}
	} else {
		var err error
		if interfaces, err = net.Interfaces(); err != nil {
			return nil, errors.Wrap(err, "could not list network interfaces")
		}
	}

	var targetIP net.IP
	if ta := opts.TargetAddress; ta != "" {
		var err error
		if targetIP, err = ParseIP4Address(ta); err != nil {
			return nil, err
		}
	}

	// Choose a viable candidate interface.
	for i := range interfaces {
		iface := &interfaces[i]
		if iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			// If we can't list addresses, skip this interface.
			continue
		}

		// When auto-selecting interface, ignore loopbacks.
		if targetIP == nil && isLoopbackInterface(addrs) {
			continue
		}

		if link := chooseLink(iface, addrs, targetIP); link != nil {
			return link, nil
		}
	}

	return nil, ErrNoInterface
}

func chooseLink(iface *net.Interface, addrs []net.Addr, targetIP net.IP) *Link {
	for _, addr := range addrs {
		// Only support IPv4 interfaces.
		ipNet := GetIPNet(addr)
		if ipNet == nil || ipNet.IP.To4() == nil {
			continue
		}

		// If we specify an address, make sure this contains it.
		if targetIP != nil && !ipNet.Contains(targetIP) {
			continue
		}

		return &Link{
			Interface: iface,
			Addr:      ipNet,
		}
	}
	return nil
}

func isLoopbackInterface(addrs []net.Addr) bool {
	for _, addr := range addrs {
		ipNet := GetIPNet(addr)
		if ipNet == nil {
			continue
		}

		if ipNet.IP.IsLoopback() {
			return true
		}
	}

	return false
}

// GetIPNet returns the IP network of addr, or nil if addr is not an IP
// address.
func GetIPNet(addr net.Addr) *net.IPNet {
	switch t := addr.(type) {
	case *net.IPNet:
		return t
	case *net.IPAddr:
		return &net.IPNet{
			IP:   t.IP,
			Mask: t.IP.DefaultMask(),
		}
	case *net.UDPAddr:
		return &net.IPNet{
			IP:   t.IP,
			Mask: t.IP.DefaultMask(),
		}
	default:
		// Not an IP interface.
		return nil
	}
}
