package billingsync_test

import (
	"testing"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

func TestTierForAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   billingsync.Tier
	}{
		{0, billingsync.TierPlus},
		{2900, billingsync.TierPlus},
		{2999, billingsync.TierPlus},
		{3000, billingsync.TierPro},
		{5900, billingsync.TierPro},
		{5999, billingsync.TierPro},
		{6000, billingsync.TierNone},
		{100000, billingsync.TierNone},
	}

	for _, tt := range tests {
		if got := billingsync.TierForAmount(tt.amount); got != tt.want {
			t.Errorf("TierForAmount(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestTierAtLeast(t *testing.T) {
	tests := []struct {
		tier     billingsync.Tier
		required billingsync.Tier
		want     bool
	}{
		{billingsync.TierNone, billingsync.TierNone, true},
		{billingsync.TierNone, billingsync.TierPlus, false},
		{billingsync.TierPlus, billingsync.TierPlus, true},
		{billingsync.TierPlus, billingsync.TierPro, false},
		{billingsync.TierPro, billingsync.TierPlus, true},
		{billingsync.TierPro, billingsync.TierPro, true},
	}

	for _, tt := range tests {
		if got := tt.tier.AtLeast(tt.required); got != tt.want {
			t.Errorf("%q.AtLeast(%q) = %v, want %v", tt.tier, tt.required, got, tt.want)
		}
	}
}
