package store

import (
	"context"
	"errors"

	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"gorm.io/gorm"
)

type Cluster interface {
	List(ctx context.Context) ([]model.Cluster, error)
	FindOrCreate(ctx context.Context, name string) (*model.Cluster, error)
}

type clusterStore struct {
	db *gorm.DB
}

var _ Cluster = (*clusterStore)(nil)

func NewClusterStore(db *gorm.DB) Cluster {
	return &clusterStore{db: db}
}

func (c *clusterStore) List(ctx context.Context) ([]model.Cluster, error) {
	var clusters []model.Cluster
	result := c.getDB(ctx).WithContext(ctx).Order("name").Find(&clusters)
	if result.Error != nil {
		return nil, result.Error
	}
	return clusters, nil
}

func (c *clusterStore) FindOrCreate(ctx context.Context, name string) (*model.Cluster, error) {
	db := c.getDB(ctx).WithContext(ctx)

	var cluster model.Cluster
	err := db.Where("name = ?", name).First(&cluster).Error
	if err == nil {
		return &cluster, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cluster = model.Cluster{Name: name}
	if err := db.Create(&cluster).Error; err != nil {
		// lost a race with a concurrent import
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := db.Where("name = ?", name).First(&cluster).Error; err != nil {
				return nil, err
			}
			return &cluster, nil
		}
		return nil, err
	}
	return &cluster, nil
}

func (c *clusterStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return c.db
}
