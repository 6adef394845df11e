package common

import "context"

type ctxKey string

const shopKey ctxKey = "auth/shop"

// WithShop stores the authenticated shop domain on the provided context.
func WithShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopKey, shop)
}

// Shop extracts the authenticated shop domain from the context if present.
func Shop(ctx context.Context) (string, bool) {
	v := ctx.Value(shopKey)
	if v == nil {
		return "", false
	}
	shop, ok := v.(string)
	return shop, ok && shop != ""
}
