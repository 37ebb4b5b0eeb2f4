package store

import (
	"context"
	"errors"

	"github.com/sieteunoseis/vcenter-bridge/internal/store/model"
	"gorm.io/gorm"
)

// Lookup resolves slugs for one of the small reference tables (tags, roles,
// platforms). Missing slugs surface ErrRecordNotFound so callers can decide
// whether that is fatal.
type Lookup[T any] interface {
	GetBySlug(ctx context.Context, slug string) (*T, error)
	Create(ctx context.Context, record *T) (*T, error)
}

type Tag = Lookup[model.Tag]
type Role = Lookup[model.Role]
type Platform = Lookup[model.Platform]

type lookupStore[T any] struct {
	db *gorm.DB
}

func NewTagStore(db *gorm.DB) Tag {
	return &lookupStore[model.Tag]{db: db}
}

func NewRoleStore(db *gorm.DB) Role {
	return &lookupStore[model.Role]{db: db}
}

func NewPlatformStore(db *gorm.DB) Platform {
	return &lookupStore[model.Platform]{db: db}
}

func (l *lookupStore[T]) GetBySlug(ctx context.Context, slug string) (*T, error) {
	var record T
	result := l.getDB(ctx).WithContext(ctx).Where("slug = ?", slug).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &record, nil
}

func (l *lookupStore[T]) Create(ctx context.Context, record *T) (*T, error) {
	result := l.getDB(ctx).WithContext(ctx).Create(record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return record, nil
}

func (l *lookupStore[T]) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return l.db
}
