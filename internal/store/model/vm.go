package model

import (
	"encoding/json"

	"gorm.io/gorm"
)

// VirtualMachine is one asset record. Records imported from vCenter carry a
// provenance comment; records created by hand have none.
type VirtualMachine struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;not null"`
	Status   string `gorm:"not null;default:active"`
	VCPUs    int
	MemoryMB int64
	DiskGB   int

	ClusterID  *uint
	Cluster    *Cluster
	PlatformID *uint
	Platform   *Platform
	RoleID     *uint
	Role       *Role
	Tags       []Tag `gorm:"many2many:virtual_machine_tags;"`

	Interfaces []Interface `gorm:"constraint:OnDelete:CASCADE;"`

	// Primary addresses are stored in CIDR notation, one per family.
	PrimaryIPv4 string
	PrimaryIPv6 string
	Comments    string
}

type VirtualMachineList []VirtualMachine

func (v VirtualMachine) String() string {
	val, _ := json.Marshal(v)
	return string(val)
}

type Interface struct {
	gorm.Model
	VirtualMachineID uint   `gorm:"index;not null"`
	Name             string `gorm:"not null"`
	MACAddress       string
	Enabled          bool
	Addresses        []IPAddress `gorm:"constraint:OnDelete:CASCADE;"`
}

// IPAddress holds one address of an interface in CIDR notation.
type IPAddress struct {
	gorm.Model
	InterfaceID uint   `gorm:"index;not null"`
	Address     string `gorm:"not null"`
}
