package model

import "github.com/shopspring/decimal"

// PaiseToPrice converts an integer paise amount to a rupee price without
// binary rounding on the way (10005 → 100.05).
func PaiseToPrice(paise int64) float64 {
	return decimal.New(paise, -2).InexactFloat64()
}

// PriceToPaise rounds a rupee price to the nearest paisa.
func PriceToPaise(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}

// Itoa is a minimal int-to-string converter for key building.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
