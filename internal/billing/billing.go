// Package billing answers whether a user holds the paid entitlement.
package billing

import (
	"context"
	"log/slog"

	"cookflow/internal/config"
)

type Entitlements interface {
	IsPro(ctx context.Context, userID string) (bool, error)
}

// Static reports the same answer for every user.
type Static bool

func (s Static) IsPro(context.Context, string) (bool, error) { return bool(s), nil }

// NewFromConfig returns a RevenueCat client when a key is configured for the
// platform, otherwise everyone is a free user.
func NewFromConfig(cfg *config.Config) Entitlements {
	key := cfg.Billing.KeyFor(cfg.Billing.Platform)
	if key == "" {
		slog.Info("billing not configured, all users are on the free plan")
		return Static(false)
	}
	return NewRevenueCat(key, cfg.Billing.EntitlementID, cfg.Billing.Endpoint, cfg.Billing.Timeout)
}

// CheckPro collapses lookup failures to "not pro". A user never gets locked
// out of the free quota because billing is down.
func CheckPro(ctx context.Context, e Entitlements, userID string) bool {
	pro, err := e.IsPro(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "entitlement lookup failed", "user", userID, "error", err)
		return false
	}
	return pro
}
