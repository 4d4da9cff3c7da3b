package db

import (
	"context"
	"testing"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx on bare context, got %v", tx)
	}
}

func TestTxFromContext_WrongValueType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Errorf("expected nil tx for mistyped value, got %v", tx)
	}
}
