package cart

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"goflare.io/storefront/models"
)

func TestEncodeSnapshotFormat(t *testing.T) {
	got, err := EncodeSnapshot(models.CartSnapshot{
		{ItemKey: "sku-010", Quantity: 10},
		{ItemKey: "Ünïcode key", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := `[{"productId":"sku-010","quantity":10},{"productId":"Ünïcode key","quantity":1}]`
	if got != want {
		t.Errorf("unexpected encoding\nwant %s\ngot  %s", want, got)
	}

	empty, _ := EncodeSnapshot(nil)
	if empty != "[]" {
		t.Errorf("expected nil snapshot to encode as [], got %s", empty)
	}
}

func TestDecodeSnapshotRoundTrip(t *testing.T) {
	want := models.CartSnapshot{
		{ItemKey: "b", Quantity: 3},
		{ItemKey: "a", Quantity: 1},
		{ItemKey: "  spaced  ", Quantity: 1000000},
	}
	encoded, err := EncodeSnapshot(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshotRejectsMalformed(t *testing.T) {
	for _, data := range []string{"", "[", "null", `[{"productId":"p1","quantity":-1}]`} {
		if _, err := DecodeSnapshot(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeSnapshot(%q): expected ErrMalformed, got %v", data, err)
		}
	}
}

func TestEncodeSnapshotRejectsInvalidUTF8(t *testing.T) {
	_, err := EncodeSnapshot(models.CartSnapshot{{ItemKey: "\xff", Quantity: 1}, {ItemKey: "\xfe", Quantity: 2}})
	if err == nil {
		t.Error("expected keys that cannot round trip to be rejected")
	}
}
