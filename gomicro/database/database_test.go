package database

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestOpenMemoryTranslatesDuplicateKeys(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := MigrateModels(db, &widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := db.Create(&widget{Code: "a"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err = db.Create(&widget{Code: "a"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected ErrDuplicatedKey, got %v", err)
	}
}

func TestMigrateModelsRequiresDB(t *testing.T) {
	if err := MigrateModels(nil, &widget{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}
