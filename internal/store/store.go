package store

import (
	"context"

	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	VirtualMachine() VirtualMachine
	Cluster() Cluster
	Tag() Tag
	Role() Role
	Platform() Platform
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	vm       VirtualMachine
	cluster  Cluster
	tag      Tag
	role     Role
	platform Platform
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:       db,
		vm:       NewVirtualMachineStore(db),
		cluster:  NewClusterStore(db),
		tag:      NewTagStore(db),
		role:     NewRoleStore(db),
		platform: NewPlatformStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) VirtualMachine() VirtualMachine {
	return s.vm
}

func (s *DataStore) Cluster() Cluster {
	return s.cluster
}

func (s *DataStore) Tag() Tag {
	return s.tag
}

func (s *DataStore) Role() Role {
	return s.role
}

func (s *DataStore) Platform() Platform {
	return s.platform
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.Cluster{},
		&model.Tag{},
		&model.Role{},
		&model.Platform{},
		&model.VirtualMachine{},
		&model.Interface{},
		&model.IPAddress{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
