package pricing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummitPolicy_TierBoundaries(t *testing.T) {
	policy := NewSummitPolicy()

	tests := []struct {
		count    int
		subtotal Money
		unit     Money
		tier     Tier
	}{
		{count: 0, subtotal: 0, unit: 0, tier: TierNone},
		{count: 1, subtotal: KES(15000), unit: KES(15000), tier: TierIndividual},
		{count: 2, subtotal: KES(30000), unit: KES(15000), tier: TierIndividual},
		{count: 3, subtotal: KES(45000), unit: KES(15000), tier: TierIndividual},
		{count: 4, subtotal: KES(45000), unit: KES(11250), tier: TierSpecialGroup},
		{count: 5, subtotal: KES(55000), unit: KES(11000), tier: TierGroup},
		{count: 6, subtotal: KES(66000), unit: KES(11000), tier: TierGroup},
		{count: 100, subtotal: KES(1100000), unit: KES(11000), tier: TierGroup},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.tier, tt.count), func(t *testing.T) {
			q := policy.Price(tt.count)
			assert.Equal(t, tt.subtotal, q.Subtotal)
			assert.Equal(t, tt.unit, q.UnitPrice)
			assert.Equal(t, tt.tier, q.Tier)
			assert.Equal(t, Money(0), q.TaxAmount)
			assert.Equal(t, q.Subtotal+q.TaxAmount, q.TotalAmount)
			if q.HasItem() {
				assert.Equal(t, q.Subtotal, q.ItemTotal())
			}
		})
	}
}

func TestSummitPolicy_Descriptions(t *testing.T) {
	policy := NewSummitPolicy()

	assert.Equal(t, "no participants", policy.Price(0).Description)
	assert.Equal(t, "Add participants to generate invoice", policy.Price(0).Notes)
	assert.Equal(t, "Individual Registration – 2 participant(s)", policy.Price(2).Description)
	assert.Equal(t, "Payment for 2 participant(s) - Individual Rate (KES 15,000 per person)", policy.Price(2).Notes)
	assert.Equal(t, "Group Registration – 4 participants (Special Rate)", policy.Price(4).Description)
	assert.Equal(t, "Payment for 4 participant(s) - Special Group Rate (KES 45,000 total)", policy.Price(4).Notes)
	assert.Equal(t, "Group Registration – 7 participant(s)", policy.Price(7).Description)
	assert.Equal(t, "Payment for 7 participant(s) - Group Rate (KES 11,000 per person)", policy.Price(7).Notes)
}

func TestSummitPolicy_NegativeCountPricesAsZero(t *testing.T) {
	q := NewSummitPolicy().Price(-3)
	assert.Equal(t, 0, q.Count)
	assert.Equal(t, Money(0), q.TotalAmount)
	assert.False(t, q.HasItem())
}

func TestSummitPolicy_Deterministic(t *testing.T) {
	policy := NewSummitPolicy()
	for c := 0; c <= 12; c++ {
		assert.Equal(t, policy.Price(c), policy.Price(c))
	}
}
