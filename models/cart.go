package models

import "unicode/utf8"

// LineItem 代表購物車中的單個商品項目
type LineItem struct {
	ItemKey  string `json:"productId"`
	Quantity int    `json:"quantity"`
}

// ValidItemKey reports whether key can be held and persisted losslessly:
// non-empty and valid UTF-8.
func ValidItemKey(key string) bool {
	return key != "" && utf8.ValidString(key)
}

// CartSnapshot 代表購物車在某一時刻的完整有序狀態
type CartSnapshot []LineItem

func NewCartSnapshot() CartSnapshot {
	return CartSnapshot{}
}

// Clone returns an independent copy; a nil receiver yields an empty snapshot.
func (s CartSnapshot) Clone() CartSnapshot {
	out := make(CartSnapshot, len(s))
	copy(out, s)
	return out
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s) == 0
}

func (s CartSnapshot) TotalQuantity() int {
	total := 0
	for _, item := range s {
		total += item.Quantity
	}
	return total
}

// Index returns the position of itemKey or -1.
func (s CartSnapshot) Index(itemKey string) int {
	for i, item := range s {
		if item.ItemKey == itemKey {
			return i
		}
	}
	return -1
}

func (s CartSnapshot) Quantity(itemKey string) int {
	if i := s.Index(itemKey); i >= 0 {
		return s[i].Quantity
	}
	return 0
}
