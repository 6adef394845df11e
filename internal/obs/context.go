package obs

import "context"

type shopHolderKey struct{}

// shopHolder is filled in by AnnotateShop once authentication has resolved
// the shop, so the outer request logger can include it.
type shopHolder struct {
	shop string
}

func withShopHolder(ctx context.Context, h *shopHolder) context.Context {
	return context.WithValue(ctx, shopHolderKey{}, h)
}

func shopHolderFrom(ctx context.Context) *shopHolder {
	h, _ := ctx.Value(shopHolderKey{}).(*shopHolder)
	return h
}
