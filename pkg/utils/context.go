package utils

import (
	"context"

	common_models "records-console/internal/common/models"
)

// WithClaims attaches the acting user to ctx.
func WithClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, common_models.ClaimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*UserClaims, bool) {
	claims, ok := ctx.Value(common_models.ClaimsKey).(*UserClaims)
	return claims, ok && claims != nil
}
