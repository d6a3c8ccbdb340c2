// Package prize maps reward ranks to payout amounts.
package prize

import "github.com/shopspring/decimal"

var byRank = map[string]int64{
	"1": 6040000,
	"2": 200000,
	"3": 80000,
	"4": 40000,
	"5": 20000,
}

// ByRank returns the payout per ticket unit for a rank. Unknown, unparsable
// or empty ranks pay zero.
func ByRank(rank string) decimal.Decimal {
	return decimal.NewFromInt(byRank[rank])
}
