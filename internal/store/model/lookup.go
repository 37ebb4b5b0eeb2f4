package model

import "gorm.io/gorm"

// Tags, roles and platforms are referenced by slug everywhere outside the
// database.

type Tag struct {
	gorm.Model
	Name string `gorm:"not null"`
	Slug string `gorm:"uniqueIndex;not null"`
}

type Role struct {
	gorm.Model
	Name string `gorm:"not null"`
	Slug string `gorm:"uniqueIndex;not null"`
}

type Platform struct {
	gorm.Model
	Name string `gorm:"not null"`
	Slug string `gorm:"uniqueIndex;not null"`
}
