// Package pricing turns a participant count into the registration fee for the summit.
package pricing

import "fmt"

// Tier names the participant-count bracket a quote was priced under.
type Tier string

const (
	TierNone         Tier = "none"
	TierIndividual   Tier = "individual"
	TierSpecialGroup Tier = "special_group"
	TierGroup        Tier = "group"
)

// Summit rates in whole shillings.
const (
	IndividualRate   = 15000
	SpecialGroupSize = 4
	SpecialGroupFlat = 45000
	GroupRate        = 11000
)

// Quote is the priced result for a participant count.
// TotalAmount always equals Subtotal + TaxAmount.
type Quote struct {
	Count       int
	Tier        Tier
	UnitPrice   Money
	Subtotal    Money
	TaxAmount   Money
	TotalAmount Money
	Description string
	Notes       string
}

// Policy prices a registration by participant count.
type Policy interface {
	Price(count int) Quote
}

// SummitPolicy is the tiered, tax-exclusive summit fee schedule.
type SummitPolicy struct{}

// NewSummitPolicy returns the default summit pricing policy.
func NewSummitPolicy() Policy {
	return SummitPolicy{}
}

// Price is total over all integers; negative counts price as zero participants.
func (SummitPolicy) Price(count int) Quote {
	if count < 0 {
		count = 0
	}

	q := Quote{Count: count}
	switch {
	case count == 0:
		q.Tier = TierNone
		q.Description = "no participants"
		q.Notes = "Add participants to generate invoice"
	case count <= 3:
		q.Tier = TierIndividual
		q.UnitPrice = KES(IndividualRate)
		q.Subtotal = q.UnitPrice.Multiply(int64(count))
		q.Description = fmt.Sprintf("Individual Registration – %d participant(s)", count)
		q.Notes = fmt.Sprintf("Payment for %d participant(s) - Individual Rate (KES 15,000 per person)", count)
	case count == SpecialGroupSize:
		q.Tier = TierSpecialGroup
		q.Subtotal = KES(SpecialGroupFlat)
		q.UnitPrice = Money(q.Subtotal.Cents() / SpecialGroupSize)
		q.Description = "Group Registration – 4 participants (Special Rate)"
		q.Notes = fmt.Sprintf("Payment for %d participant(s) - Special Group Rate (KES 45,000 total)", count)
	default:
		q.Tier = TierGroup
		q.UnitPrice = KES(GroupRate)
		q.Subtotal = q.UnitPrice.Multiply(int64(count))
		q.Description = fmt.Sprintf("Group Registration – %d participant(s)", count)
		q.Notes = fmt.Sprintf("Payment for %d participant(s) - Group Rate (KES 11,000 per person)", count)
	}

	q.TaxAmount = 0
	q.TotalAmount = q.Subtotal.Add(q.TaxAmount)
	return q
}

// HasItem reports whether the quote produces an invoice line item.
func (q Quote) HasItem() bool {
	return q.Count > 0
}

// ItemTotal is quantity times unit price for the generated line item.
func (q Quote) ItemTotal() Money {
	return q.UnitPrice.Multiply(int64(q.Count))
}
