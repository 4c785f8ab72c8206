package cii

import (
	"github.com/shopspring/decimal"

	"github.com/rezonia/facturx-engine/internal/model"
)

// VATGroup accumulates the lines sharing one VAT rate
type VATGroup struct {
	Rate  decimal.Decimal
	Basis decimal.Decimal
	Tax   decimal.Decimal
}

// VATBreakdown groups lines by rate value. Groups come out in the order
// their rate first appears in the line list, not sorted; 20 and 20.0 land
// in the same group.
func VATBreakdown(inv *model.Invoice) []VATGroup {
	groups := make([]VATGroup, 0, 4)
	for _, l := range inv.Lines {
		idx := -1
		for i := range groups {
			if groups[i].Rate.Equal(l.VATRate) {
				idx = i
				break
			}
		}
		if idx < 0 {
			groups = append(groups, VATGroup{Rate: l.VATRate, Basis: decimal.Zero, Tax: decimal.Zero})
			idx = len(groups) - 1
		}
		groups[idx].Basis = groups[idx].Basis.Add(l.LineTotal())
		groups[idx].Tax = groups[idx].Tax.Add(l.VATAmount())
	}
	return groups
}
