package dashboard

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EndingThreshold is the countdown at or below which an active auction is flagged as ending.
const EndingThreshold = 10

// FormatClock renders whole seconds as m:ss
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatMoney renders an amount with two decimal places and a dollar sign
func FormatMoney(amount float64) string {
	return "$" + decimal.NewFromFloat(amount).StringFixed(2)
}

// IsEnding reports whether the countdown is in its final seconds
func IsEnding(seconds int) bool {
	return seconds <= EndingThreshold
}
