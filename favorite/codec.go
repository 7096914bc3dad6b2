package favorite

import (
	"encoding/json"
	"errors"
	"fmt"

	"goflare.io/storefront/models"
)

var ErrMalformed = errors.New("favorite: malformed set")

// EncodeSet renders the set as a sorted JSON array of keys.
func EncodeSet(set models.FavoriteSet) (string, error) {
	keys := set.Keys()
	for _, key := range keys {
		if !models.ValidItemKey(key) {
			return "", fmt.Errorf("favorite: encode set: invalid key %q", key)
		}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("favorite: encode set: %w", err)
	}
	return string(data), nil
}

func DecodeSet(data string) (models.FavoriteSet, error) {
	var keys []string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if keys == nil {
		return nil, fmt.Errorf("%w: not an array", ErrMalformed)
	}

	set := make(models.FavoriteSet, len(keys))
	for _, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrMalformed)
		}
		if set.Contains(key) {
			return nil, fmt.Errorf("%w: key %q repeated", ErrMalformed, key)
		}
		set[key] = struct{}{}
	}
	return set, nil
}
