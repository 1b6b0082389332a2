package memory

import (
	"context"
	"errors"
	"testing"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{
		TradeID:      "trade1",
		RunID:        "run1",
		Symbol:       "BTCUSDT",
		Side:         domain.PositionLong,
		EntryTime:    1000,
		ExitTime:     2000,
		PnLRealistic: 5,
	}

	err := store.Insert(ctx, trade)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.PnLRealistic != 5 {
		t.Errorf("PnLRealistic mismatch: got %f, want %f", got.PnLRealistic, 5.0)
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{TradeID: "trade1", RunID: "run1"}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, trade)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_InsertBulkAtomic(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run1"},
		{TradeID: "t2", RunID: "run1"},
		{TradeID: "t1", RunID: "run1"},
	}

	err := store.InsertBulk(ctx, trades)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	if _, err := store.GetByID(ctx, "t2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Batch should not be partially applied, got %v", err)
	}
}

func TestTradeRecordStore_GetByRunID(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "b", RunID: "run1", ExitTime: 3000},
		{TradeID: "a", RunID: "run1", ExitTime: 3000},
		{TradeID: "c", RunID: "run1", ExitTime: 1000},
		{TradeID: "d", RunID: "run2", ExitTime: 500},
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(got))
	}
	if got[0].TradeID != "c" || got[1].TradeID != "a" || got[2].TradeID != "b" {
		t.Errorf("Unexpected order: %s %s %s", got[0].TradeID, got[1].TradeID, got[2].TradeID)
	}
}
