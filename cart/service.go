package cart

import (
	"context"

	"goflare.io/storefront/models"
)

type Service interface {
	Hydrate(ctx context.Context) models.CartSnapshot
	Snapshot() models.CartSnapshot
	Add(itemKey string, quantity int) models.CartSnapshot
	SetQuantity(itemKey string, quantity int) models.CartSnapshot
	Remove(itemKey string) models.CartSnapshot
	Clear() models.CartSnapshot
	TotalQuantity() int
	Subscribe(fn func(models.CartSnapshot)) (unsubscribe func())
}
