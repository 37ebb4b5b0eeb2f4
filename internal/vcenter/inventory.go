package vcenter

import (
	"context"
	"fmt"
	"math"

	"github.com/sieteunoseis/vcenter-bridge/internal/batch"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter/topology"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

// kibPerGiB converts virtual disk capacities reported in KiB to GiB.
const kibPerGiB = 1048576

// vmProps are the only VirtualMachine property paths the fetch requests.
// Asking for full objects across a large inventory is what makes naive
// clients fall over.
var vmProps = []string{
	"name",
	"runtime.powerState",
	"runtime.host",
	"config.hardware.numCPU",
	"config.hardware.memoryMB",
	"config.hardware.device",
	"config.uuid",
	"config.guestFullName",
	"guest.ipAddress",
	"guest.net",
}

// topologyKinds maps vSphere managed object types to topology node tags.
// ComputeResource is the standalone-host container; ClusterComputeResource
// subtypes it but is reported with its concrete type.
var topologyKinds = map[string]topology.Kind{
	"HostSystem":             topology.KindHost,
	"ClusterComputeResource": topology.KindCluster,
	"ComputeResource":        topology.KindCompute,
	"Folder":                 topology.KindFolder,
	"Datacenter":             topology.KindDatacenter,
}

// FetchAll retrieves the full VM inventory of the server. It issues one
// paginated bulk property retrieval for the host/container topology and one
// for the VMs, instead of one query per object. A failure to assemble a
// single VM is recorded and skipped; it never aborts the fetch.
func (c *Client) FetchAll(ctx context.Context) ([]VMRecord, batch.Errors, error) {
	var records []VMRecord
	var failed batch.Errors

	err := c.withSession(ctx, func(ctx context.Context, s *conn) error {
		resolver, err := fetchTopology(ctx, s)
		if err != nil {
			return fmt.Errorf("retrieving host topology: %w", err)
		}

		records, failed, err = fetchVMs(ctx, s, resolver)
		if err != nil {
			return fmt.Errorf("retrieving virtual machines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return records, failed, nil
}

// fetchTopology pulls every host and container node (name + parent) in one
// paginated retrieval and hands them to the resolver.
func fetchTopology(ctx context.Context, s *conn) (*topology.Resolver, error) {
	kinds := make([]string, 0, len(topologyKinds))
	props := make(map[string][]string, len(topologyKinds))
	for kind := range topologyKinds {
		kinds = append(kinds, kind)
		props[kind] = []string{"name", "parent"}
	}

	v, err := s.views.CreateContainerView(ctx, s.vim.ServiceContent.RootFolder, kinds, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = v.Destroy(ctx) }()

	objects, err := retrieveAll(ctx, s.pager, viewFilter(v.Reference(), props))
	if err != nil {
		return nil, err
	}

	return topology.NewResolver(topologyNodes(objects)), nil
}

func topologyNodes(objects []types.ObjectContent) []topology.Node {
	seen := make(map[string]bool, len(objects))
	nodes := make([]topology.Node, 0, len(objects))

	for _, obj := range objects {
		id := obj.Obj.String()
		if seen[id] {
			continue
		}
		seen[id] = true

		kind, ok := topologyKinds[obj.Obj.Type]
		if !ok {
			continue
		}

		node := topology.Node{ID: id, Kind: kind}
		for _, prop := range obj.PropSet {
			switch prop.Name {
			case "name":
				if v, ok := prop.Val.(string); ok {
					node.Name = v
				}
			case "parent":
				if v, ok := prop.Val.(types.ManagedObjectReference); ok {
					node.Parent = v.String()
				}
			}
		}
		nodes = append(nodes, node)
	}

	return nodes
}

func fetchVMs(ctx context.Context, s *conn, resolver *topology.Resolver) ([]VMRecord, batch.Errors, error) {
	v, err := s.views.CreateContainerView(ctx, s.vim.ServiceContent.RootFolder, []string{"VirtualMachine"}, true)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = v.Destroy(ctx) }()

	objects, err := retrieveAll(ctx, s.pager, viewFilter(v.Reference(), map[string][]string{"VirtualMachine": vmProps}))
	if err != nil {
		return nil, nil, err
	}

	return assembleVMs(objects, resolver)
}

// assembleVMs turns raw property bundles into VM records. Malformed objects
// are logged, recorded and skipped.
func assembleVMs(objects []types.ObjectContent, resolver *topology.Resolver) ([]VMRecord, batch.Errors, error) {
	records := make([]VMRecord, 0, len(objects))
	var failed batch.Errors

	for _, obj := range objects {
		rec, err := buildVMRecord(obj, resolver)
		if err != nil {
			zap.S().Named("vcenter").Warnf("skipping %s: %v", obj.Obj, err)
			failed.Add(obj.Obj.String(), err)
			continue
		}
		records = append(records, rec)
	}

	return records, failed, nil
}

func buildVMRecord(obj types.ObjectContent, resolver *topology.Resolver) (VMRecord, error) {
	rec := VMRecord{PowerState: PowerStateOff}
	var hostRef string

	for _, prop := range obj.PropSet {
		switch prop.Name {
		case "name":
			if v, ok := prop.Val.(string); ok {
				rec.Name = v
			}
		case "runtime.powerState":
			if isPoweredOn(prop.Val) {
				rec.PowerState = PowerStateOn
			}
		case "runtime.host":
			if v, ok := prop.Val.(types.ManagedObjectReference); ok {
				hostRef = v.String()
			}
		case "config.hardware.numCPU":
			if v, ok := prop.Val.(int32); ok {
				rec.VCPUs = int(v)
			}
		case "config.hardware.memoryMB":
			if v, ok := prop.Val.(int32); ok {
				rec.MemoryMB = int64(v)
			}
		case "config.hardware.device":
			if v, ok := prop.Val.(types.ArrayOfVirtualDevice); ok {
				rec.DiskGB = totalDiskGB(v.VirtualDevice)
			}
		case "config.uuid":
			if v, ok := prop.Val.(string); ok {
				rec.UUID = v
			}
		case "config.guestFullName":
			if v, ok := prop.Val.(string); ok {
				rec.GuestOS = v
			}
		case "guest.ipAddress":
			if v, ok := prop.Val.(string); ok {
				rec.PrimaryIP = v
			}
		case "guest.net":
			if v, ok := prop.Val.(types.ArrayOfGuestNicInfo); ok {
				rec.Interfaces = guestInterfaces(v.GuestNicInfo)
			}
		}
	}

	if rec.Name == "" {
		return rec, fmt.Errorf("object %s reported no name", obj.Obj)
	}

	rec.IPAddresses = mergeIPs(rec.PrimaryIP, rec.Interfaces)

	if hostRef != "" {
		placement := resolver.Resolve(hostRef)
		rec.Cluster = placement.Cluster
		rec.Datacenter = placement.Datacenter
	}

	return rec, nil
}

func isPoweredOn(val types.AnyType) bool {
	switch v := val.(type) {
	case types.VirtualMachinePowerState:
		return v == types.VirtualMachinePowerStatePoweredOn
	case string:
		return v == string(types.VirtualMachinePowerStatePoweredOn)
	}
	return false
}

// totalDiskGB sums the capacity of all virtual disks attached to the VM and
// converts KiB to GiB, rounded to the nearest integer.
func totalDiskGB(devices []types.BaseVirtualDevice) int {
	var kib int64
	for _, dev := range devices {
		if disk, ok := dev.(*types.VirtualDisk); ok {
			kib += disk.CapacityInKB
		}
	}
	if kib == 0 {
		return 0
	}
	return int(math.Round(float64(kib) / kibPerGiB))
}

func guestInterfaces(nics []types.GuestNicInfo) []InterfaceRecord {
	records := make([]InterfaceRecord, 0, len(nics))
	for _, nic := range nics {
		name := nic.Network
		if name == "" {
			name = "Unknown"
		}
		records = append(records, InterfaceRecord{
			Name:        name,
			MAC:         nic.MacAddress,
			Connected:   nic.Connected,
			IPAddresses: append([]string(nil), nic.IpAddress...),
		})
	}
	return records
}

// mergeIPs combines the guest's reported primary IP with every interface IP
// into a deduplicated list preserving first-seen order.
func mergeIPs(primary string, interfaces []InterfaceRecord) []string {
	seen := make(map[string]bool)
	var merged []string

	add := func(ip string) {
		if ip == "" || seen[ip] {
			return
		}
		seen[ip] = true
		merged = append(merged, ip)
	}

	add(primary)
	for _, iface := range interfaces {
		for _, ip := range iface.IPAddresses {
			add(ip)
		}
	}

	return merged
}
