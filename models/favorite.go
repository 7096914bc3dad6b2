package models

import "sort"

// FavoriteSet 代表已收藏商品的集合
type FavoriteSet map[string]struct{}

func NewFavoriteSet(keys ...string) FavoriteSet {
	set := make(FavoriteSet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

func (f FavoriteSet) Contains(key string) bool {
	_, ok := f[key]
	return ok
}

func (f FavoriteSet) Clone() FavoriteSet {
	out := make(FavoriteSet, len(f))
	for key := range f {
		out[key] = struct{}{}
	}
	return out
}

// Keys returns the members in ascending order.
func (f FavoriteSet) Keys() []string {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
