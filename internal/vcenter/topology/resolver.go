package topology

import (
	"go.uber.org/zap"
)

// Kind tags an inventory tree node. The vSphere hierarchy is walked tag by
// tag instead of by runtime type checks.
type Kind string

const (
	KindHost       Kind = "host"
	KindCluster    Kind = "cluster"
	KindCompute    Kind = "compute"
	KindDatacenter Kind = "datacenter"
	KindFolder     Kind = "folder"
	KindRoot       Kind = "root"
)

// maxDepth bounds parent-chain walks so malformed data with a reference
// cycle cannot loop forever.
const maxDepth = 64

// Node is one entry in the inventory tree. Parent is a back-reference key
// into the resolver's node table, never an owning pointer.
type Node struct {
	ID     string
	Kind   Kind
	Name   string
	Parent string
}

// Placement is the resolved owning cluster and datacenter of a host. Either
// field may be empty when the chain ends without finding one.
type Placement struct {
	Cluster    string
	Datacenter string
}

// Resolver maps compute-host identifiers to their owning cluster and
// datacenter. Results are memoized so each host's parent chain is walked at
// most once per fetch cycle regardless of how many VMs it hosts.
type Resolver struct {
	nodes map[string]Node
	memo  map[string]Placement
}

func NewResolver(nodes []Node) *Resolver {
	table := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		table[n.ID] = n
	}
	return &Resolver{
		nodes: table,
		memo:  make(map[string]Placement),
	}
}

// Resolve returns the placement for the host with the given ID. The cluster
// is taken from the host's immediate parent when that parent is a cluster
// container; the datacenter is found by walking parent references until a
// datacenter node appears or the chain ends.
func (r *Resolver) Resolve(hostID string) Placement {
	if p, ok := r.memo[hostID]; ok {
		return p
	}

	var p Placement

	host, ok := r.nodes[hostID]
	if ok {
		if parent, ok := r.nodes[host.Parent]; ok && parent.Kind == KindCluster {
			p.Cluster = parent.Name
		}
		p.Datacenter = r.findDatacenter(host)
	}

	r.memo[hostID] = p
	return p
}

func (r *Resolver) findDatacenter(from Node) string {
	current := from
	for depth := 0; depth < maxDepth; depth++ {
		parent, ok := r.nodes[current.Parent]
		if !ok {
			return ""
		}
		if parent.Kind == KindDatacenter {
			return parent.Name
		}
		current = parent
	}

	zap.S().Named("topology").Warnf("parent chain of %s exceeds %d levels, giving up", from.ID, maxDepth)
	return ""
}
