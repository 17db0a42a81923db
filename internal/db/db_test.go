package db

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migs, err := LoadMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	if migs[0].Version != 1 {
		t.Errorf("expected first version 1, got %d", migs[0].Version)
	}
	if !strings.Contains(migs[0].SQL, "availability_slots") {
		t.Error("first migration should create availability_slots")
	}
}

func TestLoadMigrations_OrderAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_late.sql":  {Data: []byte("SELECT 10;")},
		"migrations/002_mid.sql":   {Data: []byte("SELECT 2;")},
		"migrations/readme.md":     {Data: []byte("docs")},
		"migrations/abc_nover.sql": {Data: []byte("SELECT 0;")},
		"migrations/plain.sql":     {Data: []byte("SELECT 0;")},
	}

	migs, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migs) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migs))
	}
	if migs[0].Version != 2 || migs[1].Version != 10 {
		t.Errorf("unexpected order: %d, %d", migs[0].Version, migs[1].Version)
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil tx for wrong value type")
	}
}

func TestRunInTx_NoPool(t *testing.T) {
	err := RunInTx(context.Background(), nil, func(context.Context) error { return nil })
	if err == nil {
		t.Error("expected error without a pool")
	}
}

func TestIsUniqueViolation_PlainError(t *testing.T) {
	if IsUniqueViolation(context.Canceled) {
		t.Error("plain error is not a unique violation")
	}
}
