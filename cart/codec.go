package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"goflare.io/storefront/models"
)

var ErrMalformed = errors.New("cart: malformed snapshot")

// EncodeSnapshot renders the snapshot in the storefront's persisted cart
// format: a JSON array of {"productId","quantity"} objects in cart order.
func EncodeSnapshot(snapshot models.CartSnapshot) (string, error) {
	if snapshot == nil {
		snapshot = models.NewCartSnapshot()
	}
	for _, item := range snapshot {
		if !models.ValidItemKey(item.ItemKey) {
			return "", fmt.Errorf("cart: encode snapshot: invalid productId %q", item.ItemKey)
		}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("cart: encode snapshot: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a persisted cart. Any line item that could not have
// been written by a Store (empty key, non-positive quantity, repeated key)
// makes the whole value malformed.
func DecodeSnapshot(data string) (models.CartSnapshot, error) {
	var snapshot models.CartSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if snapshot == nil {
		// JSON null
		return nil, fmt.Errorf("%w: not an array", ErrMalformed)
	}

	seen := make(map[string]struct{}, len(snapshot))
	for i, item := range snapshot {
		if item.ItemKey == "" {
			return nil, fmt.Errorf("%w: item %d has no productId", ErrMalformed, i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %q has quantity %d", ErrMalformed, item.ItemKey, item.Quantity)
		}
		if _, dup := seen[item.ItemKey]; dup {
			return nil, fmt.Errorf("%w: item %q repeated", ErrMalformed, item.ItemKey)
		}
		seen[item.ItemKey] = struct{}{}
	}
	return snapshot, nil
}
