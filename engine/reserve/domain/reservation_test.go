package domain

import (
	"errors"
	"testing"
)

func TestMarkerKey_RoundTrip(t *testing.T) {
	key := MarkerKey("tenis-ed-limitada", "holder-42")

	pool, holder, ok := ParseMarkerKey(key)
	if !ok {
		t.Fatalf("expected parse ok for %q", key)
	}
	if pool != "tenis-ed-limitada" || holder != "holder-42" {
		t.Fatalf("unexpected parse result: pool=%q holder=%q", pool, holder)
	}
}

func TestParseMarkerKey_RejectsForeignKeys(t *testing.T) {
	for _, key := range []string{
		"session:abc",
		"reserve:hold:",
		"reserve:hold:pool-only",
		"",
	} {
		if _, _, ok := ParseMarkerKey(key); ok {
			t.Fatalf("expected parse to reject %q", key)
		}
	}
}

func TestReserveRequest_Validate(t *testing.T) {
	valid := ReserveRequest{PoolID: "p", HolderID: "h", Quantity: 1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	for name, req := range map[string]ReserveRequest{
		"empty pool":        {HolderID: "h", Quantity: 1},
		"empty holder":      {PoolID: "p", Quantity: 1},
		"zero quantity":     {PoolID: "p", HolderID: "h"},
		"negative quantity": {PoolID: "p", HolderID: "h", Quantity: -2},
	} {
		if err := req.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}
