package giftcert

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATS - Computed on demand by scanning certificates
// =============================================================================

// CurrencyStats aggregates one currency. Amounts in different currencies are
// never summed together.
type CurrencyStats struct {
	Currency         string
	TotalIssued      int
	TotalValueIssued decimal.Decimal
	ActiveBalance    decimal.Decimal // status active or partially_used
	ExpiredBalance   decimal.Decimal // left on expired certificates
	ForfeitedBalance decimal.Decimal // removed by cancellation
	TotalRedeemed    decimal.Decimal
	// RedemptionRate is TotalRedeemed / TotalValueIssued, 0 when nothing issued.
	RedemptionRate decimal.Decimal
}

type Stats struct {
	TotalIssued   int
	CountByStatus map[Status]int
	Currencies    []CurrencyStats // sorted by currency code
}

// ComputeStats scans certs. Activeness comes from the persisted status only.
func ComputeStats(certs []Certificate) Stats {
	stats := Stats{CountByStatus: make(map[Status]int)}
	byCurrency := make(map[string]*CurrencyStats)

	for _, c := range certs {
		stats.TotalIssued++
		stats.CountByStatus[c.Status]++

		cs, ok := byCurrency[c.Currency]
		if !ok {
			cs = &CurrencyStats{
				Currency:         c.Currency,
				TotalValueIssued: decimal.Zero,
				ActiveBalance:    decimal.Zero,
				ExpiredBalance:   decimal.Zero,
				ForfeitedBalance: decimal.Zero,
				TotalRedeemed:    decimal.Zero,
				RedemptionRate:   decimal.Zero,
			}
			byCurrency[c.Currency] = cs
		}
		cs.TotalIssued++
		cs.TotalValueIssued = cs.TotalValueIssued.Add(c.OriginalAmount)
		cs.TotalRedeemed = cs.TotalRedeemed.Add(c.RedeemedAmount())
		cs.ForfeitedBalance = cs.ForfeitedBalance.Add(c.ForfeitedAmount)
		switch {
		case c.Status.Redeemable():
			cs.ActiveBalance = cs.ActiveBalance.Add(c.CurrentBalance)
		case c.Status == StatusExpired:
			cs.ExpiredBalance = cs.ExpiredBalance.Add(c.CurrentBalance)
		}
	}

	for _, cs := range byCurrency {
		if cs.TotalValueIssued.IsPositive() {
			cs.RedemptionRate = cs.TotalRedeemed.DivRound(cs.TotalValueIssued, 4)
		}
		stats.Currencies = append(stats.Currencies, *cs)
	}
	sort.Slice(stats.Currencies, func(i, j int) bool {
		return stats.Currencies[i].Currency < stats.Currencies[j].Currency
	})
	return stats
}
