package enum

// Slot 表示持久化儲存中的狀態槽位
type Slot string

const (
	SlotCart      Slot = "cart"
	SlotFavorites Slot = "favorites"
)
