package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// optionRoots maps index display names onto their derivative roots.
var optionRoots = map[string]string{
	"NIFTY 50":   "NIFTY",
	"BANK NIFTY": "BANKNIFTY",
	"NIFTY BANK": "BANKNIFTY",
}

// lotSizes is the exchange lot size per derivative root.
var lotSizes = map[string]float64{
	"NIFTY":     75,
	"BANKNIFTY": 35,
}

// OptionType is CE for calls and PE for puts.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// NearestStrike rounds price to the closest multiple of step. Halves round to even.
func NearestStrike(price float64, step int) int {
	if step <= 0 {
		return int(math.RoundToEven(price))
	}

	return int(math.RoundToEven(price/float64(step)) * float64(step))
}

// OptionRoot returns the derivative root of an underlying symbol.
func OptionRoot(underlying string) string {
	if root, ok := optionRoots[strings.ToUpper(underlying)]; ok {
		return root
	}

	return strings.ReplaceAll(strings.ToUpper(underlying), " ", "")
}

// LotSize returns the lot size of the underlying's derivatives, or fallback when unknown.
func LotSize(underlying string, fallback float64) float64 {
	if size, ok := lotSizes[OptionRoot(underlying)]; ok {
		return size
	}

	return fallback
}

// WeeklyOptionSymbol builds ROOT+YY+MON+STRIKE+TYPE, e.g. NIFTY25AUG24800CE.
func WeeklyOptionSymbol(underlying string, strike int, optionType OptionType, expiry time.Time) string {
	return fmt.Sprintf("%s%s%s%d%s",
		OptionRoot(underlying),
		expiry.Format("06"),
		strings.ToUpper(expiry.Format("Jan")),
		strike,
		optionType,
	)
}

// NextExpiry returns the first date on or after day that falls on weekday.
func NextExpiry(day time.Time, weekday time.Weekday) time.Time {
	offset := (int(weekday) - int(day.Weekday()) + 7) % 7
	y, m, d := day.Date()

	return time.Date(y, m, d+offset, 0, 0, 0, 0, day.Location())
}
