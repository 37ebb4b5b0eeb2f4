package store

import (
	"context"
	"errors"

	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"gorm.io/gorm"
)

type VirtualMachine interface {
	List(ctx context.Context) (model.VirtualMachineList, error)
	GetByName(ctx context.Context, name string) (*model.VirtualMachine, error)
	Create(ctx context.Context, vm *model.VirtualMachine) (*model.VirtualMachine, error)
	Update(ctx context.Context, vm *model.VirtualMachine, fields []string) error
	ReplaceInterfaces(ctx context.Context, vmID uint, interfaces []model.Interface) error
	EnsureInterface(ctx context.Context, vmID uint, name string) (*model.Interface, error)
	EnsureAddress(ctx context.Context, interfaceID uint, address string) (*model.IPAddress, error)
	AddTag(ctx context.Context, vm *model.VirtualMachine, tag *model.Tag) error
	Count(ctx context.Context) (int64, error)
}

type vmStore struct {
	db *gorm.DB
}

var _ VirtualMachine = (*vmStore)(nil)

func NewVirtualMachineStore(db *gorm.DB) VirtualMachine {
	return &vmStore{db: db}
}

func (v *vmStore) List(ctx context.Context) (model.VirtualMachineList, error) {
	var vms model.VirtualMachineList
	result := v.getDB(ctx).WithContext(ctx).
		Preload("Cluster").
		Preload("Platform").
		Preload("Role").
		Preload("Tags").
		Preload("Interfaces.Addresses").
		Order("name").
		Find(&vms)
	if result.Error != nil {
		return nil, result.Error
	}
	return vms, nil
}

func (v *vmStore) GetByName(ctx context.Context, name string) (*model.VirtualMachine, error) {
	var vm model.VirtualMachine
	result := v.getDB(ctx).WithContext(ctx).
		Preload("Cluster").
		Preload("Interfaces.Addresses").
		Where("name = ?", name).
		First(&vm)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &vm, nil
}

func (v *vmStore) Create(ctx context.Context, vm *model.VirtualMachine) (*model.VirtualMachine, error) {
	result := v.getDB(ctx).WithContext(ctx).Create(vm)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return vm, nil
}

// Update persists only the named fields; associations are left untouched.
func (v *vmStore) Update(ctx context.Context, vm *model.VirtualMachine, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	result := v.getDB(ctx).WithContext(ctx).Model(vm).Select(fields).Updates(vm)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ReplaceInterfaces swaps the record's interfaces (and their addresses) for
// the given set.
func (v *vmStore) ReplaceInterfaces(ctx context.Context, vmID uint, interfaces []model.Interface) error {
	db := v.getDB(ctx).WithContext(ctx)

	var existing []model.Interface
	if err := db.Where("virtual_machine_id = ?", vmID).Find(&existing).Error; err != nil {
		return err
	}
	for i := range existing {
		if err := db.Where("interface_id = ?", existing[i].ID).Delete(&model.IPAddress{}).Error; err != nil {
			return err
		}
	}
	if err := db.Where("virtual_machine_id = ?", vmID).Delete(&model.Interface{}).Error; err != nil {
		return err
	}

	for i := range interfaces {
		interfaces[i].VirtualMachineID = vmID
		if err := db.Create(&interfaces[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureInterface returns the record's interface with the given name,
// creating it when absent.
func (v *vmStore) EnsureInterface(ctx context.Context, vmID uint, name string) (*model.Interface, error) {
	db := v.getDB(ctx).WithContext(ctx)

	var iface model.Interface
	err := db.Where("virtual_machine_id = ? AND name = ?", vmID, name).First(&iface).Error
	if err == nil {
		return &iface, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	iface = model.Interface{VirtualMachineID: vmID, Name: name, Enabled: true}
	if err := db.Create(&iface).Error; err != nil {
		return nil, err
	}
	return &iface, nil
}

// EnsureAddress binds the CIDR address to the interface, creating the
// address record when absent. An address already held by another interface
// of the same record is rebound, never duplicated.
func (v *vmStore) EnsureAddress(ctx context.Context, interfaceID uint, address string) (*model.IPAddress, error) {
	db := v.getDB(ctx).WithContext(ctx)

	var iface model.Interface
	if err := db.First(&iface, interfaceID).Error; err != nil {
		return nil, err
	}

	var addr model.IPAddress
	err := db.Select("ip_addresses.*").
		Joins("JOIN interfaces ON interfaces.id = ip_addresses.interface_id AND interfaces.deleted_at IS NULL").
		Where("interfaces.virtual_machine_id = ? AND ip_addresses.address = ?", iface.VirtualMachineID, address).
		First(&addr).Error
	if err == nil {
		if addr.InterfaceID != interfaceID {
			if err := db.Model(&addr).Update("interface_id", interfaceID).Error; err != nil {
				return nil, err
			}
			addr.InterfaceID = interfaceID
		}
		return &addr, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	addr = model.IPAddress{InterfaceID: interfaceID, Address: address}
	if err := db.Create(&addr).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}

func (v *vmStore) AddTag(ctx context.Context, vm *model.VirtualMachine, tag *model.Tag) error {
	return v.getDB(ctx).WithContext(ctx).Model(vm).Association("Tags").Append(tag)
}

func (v *vmStore) Count(ctx context.Context) (int64, error) {
	var count int64
	result := v.getDB(ctx).WithContext(ctx).Model(&model.VirtualMachine{}).Count(&count)
	return count, result.Error
}

func (v *vmStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return v.db
}
