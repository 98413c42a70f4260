package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// CreateEntity creates a record (or a slice of records) for the provided entity type.
func CreateEntity[T any](ctx context.Context, entity *T) error {
	db, err := GetDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(entity).Error
}

// GetEntityByID returns a single record of type T by its primary key id.
func GetEntityByID[T any, ID comparable](ctx context.Context, id ID) (*T, error) {
	db, err := GetDB()
	if err != nil {
		return nil, err
	}
	var out T
	if err := db.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// FindFirst returns the first record matching the condition, or nil when none does.
func FindFirst[T any](ctx context.Context, query string, args ...any) (*T, error) {
	db, err := GetDB()
	if err != nil {
		return nil, err
	}
	var out T
	err = db.WithContext(ctx).Where(query, args...).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindAll returns every record matching the condition.
func FindAll[T any](ctx context.Context, query string, args ...any) ([]T, error) {
	db, err := GetDB()
	if err != nil {
		return nil, err
	}
	var out []T
	if err := db.WithContext(ctx).Where(query, args...).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of records of type T matching the condition.
func Count[T any](ctx context.Context, query string, args ...any) (int64, error) {
	db, err := GetDB()
	if err != nil {
		return 0, err
	}
	var zero T
	var n int64
	if err := db.WithContext(ctx).Model(&zero).Where(query, args...).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateEntityByID updates columns of type T where primary key equals id.
// Pass a non-empty updates map; values set to nil will be written as NULL.
func UpdateEntityByID[T any, ID comparable](ctx context.Context, id ID, updates map[string]interface{}) error {
	db, err := GetDB()
	if err != nil {
		return err
	}
	var zero T
	return db.WithContext(ctx).Model(&zero).Where("id = ?", id).Updates(updates).Error
}

// WithTx allows running a function within a transaction using the shared DB.
func WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, err := GetDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(fn)
}
