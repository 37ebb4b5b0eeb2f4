package vcenter

// Power states as exposed to the rest of the system. vSphere's raw
// enumeration is mapped at assembly time; anything not powered on counts as
// off.
const (
	PowerStateOn  = "on"
	PowerStateOff = "off"
)

// InterfaceRecord is one guest network interface as reported by the tools.
type InterfaceRecord struct {
	Name        string   `json:"name"`
	MAC         string   `json:"mac"`
	Connected   bool     `json:"connected"`
	IPAddresses []string `json:"ip_addresses"`
}

// VMRecord is one virtual machine as fetched from a vCenter server. Records
// are produced fresh on each fetch and are immutable once cached. Within one
// server's inventory a record is identified by name; names are not unique
// across servers.
type VMRecord struct {
	Name        string            `json:"name"`
	PowerState  string            `json:"power_state"`
	VCPUs       int               `json:"vcpus"`
	MemoryMB    int64             `json:"memory_mb"`
	DiskGB      int               `json:"disk_gb"`
	Cluster     string            `json:"cluster"`
	Datacenter  string            `json:"datacenter"`
	GuestOS     string            `json:"guest_os"`
	UUID        string            `json:"uuid"`
	IPAddresses []string          `json:"ip_addresses"`
	PrimaryIP   string            `json:"primary_ip"`
	Interfaces  []InterfaceRecord `json:"interfaces"`
}

// ClusterInfo is a cluster listing entry.
type ClusterInfo struct {
	Name      string `json:"name"`
	HostCount int    `json:"host_count"`
}

// DatacenterInfo is a datacenter listing entry.
type DatacenterInfo struct {
	Name string `json:"name"`
}
