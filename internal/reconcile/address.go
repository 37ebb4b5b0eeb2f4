package reconcile

import (
	"context"
	"strings"

	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
	"go.uber.org/zap"
)

// defaultInterfaceName is the conventional interface created for records that
// carry a primary IP but report no interfaces of their own.
const defaultInterfaceName = "eth0"

// assignPrimaryIP binds the remote primary IP to the record's default
// interface and sets it as the primary IPv4 or IPv6 reference. IPv6
// link-local addresses are skipped entirely, with no side effects.
func (e *Engine) assignPrimaryIP(ctx context.Context, vm *model.VirtualMachine, ip string) error {
	if ip == "" {
		return nil
	}
	if isLinkLocal(ip) {
		zap.S().Named("reconcile").Debugf("skipping link-local primary IP %q for %q", ip, vm.Name)
		return nil
	}

	cidr := normalizeCIDR(ip)

	iface, err := e.defaultInterface(ctx, vm)
	if err != nil {
		return err
	}
	if _, err := e.store.VirtualMachine().EnsureAddress(ctx, iface.ID, cidr); err != nil {
		return err
	}

	field := "PrimaryIPv4"
	current := vm.PrimaryIPv4
	if strings.Contains(ip, ":") {
		field = "PrimaryIPv6"
		current = vm.PrimaryIPv6
	}
	if current == cidr {
		return nil
	}
	if field == "PrimaryIPv6" {
		vm.PrimaryIPv6 = cidr
	} else {
		vm.PrimaryIPv4 = cidr
	}
	return e.store.VirtualMachine().Update(ctx, vm, []string{field})
}

func (e *Engine) defaultInterface(ctx context.Context, vm *model.VirtualMachine) (*model.Interface, error) {
	if len(vm.Interfaces) > 0 {
		return &vm.Interfaces[0], nil
	}
	return e.store.VirtualMachine().EnsureInterface(ctx, vm.ID, defaultInterfaceName)
}

// localInterfaces maps remote interface records to asset interfaces,
// normalizing addresses to CIDR form and dropping link-local ones.
func localInterfaces(interfaces []vcenter.InterfaceRecord) []model.Interface {
	out := make([]model.Interface, 0, len(interfaces))
	for _, iface := range interfaces {
		m := model.Interface{
			Name:       iface.Name,
			MACAddress: iface.MAC,
			Enabled:    iface.Connected,
		}
		for _, ip := range iface.IPAddresses {
			if isLinkLocal(ip) {
				continue
			}
			m.Addresses = append(m.Addresses, model.IPAddress{Address: normalizeCIDR(ip)})
		}
		out = append(out, m)
	}
	return out
}

func isLinkLocal(ip string) bool {
	return strings.HasPrefix(strings.ToLower(ip), "fe80:")
}

// normalizeCIDR appends /32 for IPv4 and /128 for IPv6 when no prefix length
// is given.
func normalizeCIDR(ip string) string {
	if strings.Contains(ip, "/") {
		return ip
	}
	if strings.Contains(ip, ":") {
		return ip + "/128"
	}
	return ip + "/32"
}
