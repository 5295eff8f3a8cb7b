package model

import (
	"math"
	"math/big"
)

// BigAmount is a decimal-scaled integer amount carried as a string to
// survive JSON and database round trips without precision loss.
type BigAmount struct {
	Value   string `json:"value"`
	Decimal int    `json:"decimal"`
}

func (w *BigAmount) Int64() (int64, bool) {
	amt, ok := new(big.Int).SetString(w.Value, 10)
	if !ok {
		return 0, false
	}

	return amt.Int64(), true
}

func (w *BigAmount) ToFloat() float64 {
	num := new(big.Int)
	num.SetString(w.Value, 10)

	floatNum := new(big.Float).SetInt(num)

	divisor := new(big.Float).SetFloat64(math.Pow(10, float64(w.Decimal)))

	floatNum.Quo(floatNum, divisor)

	result, _ := floatNum.Float64()
	return result
}

func (w *BigAmount) Add(number *BigAmount) *BigAmount {
	num1 := new(big.Int)
	num1.SetString(w.Value, 10)

	num2 := new(big.Int)
	num2.SetString(number.Value, 10)

	result := new(big.Int)
	result.Add(num1, num2)

	return &BigAmount{
		Value:   result.String(),
		Decimal: w.Decimal,
	}
}

func (w *BigAmount) Sub(number *BigAmount) *BigAmount {
	num1 := new(big.Int)
	num1.SetString(w.Value, 10)

	num2 := new(big.Int)
	num2.SetString(number.Value, 10)

	result := new(big.Int)
	result.Sub(num1, num2)

	return &BigAmount{
		Value:   result.String(),
		Decimal: w.Decimal,
	}
}

// Positive reports whether the amount parses as a strictly positive integer.
func (w *BigAmount) Positive() bool {
	num, ok := new(big.Int).SetString(w.Value, 10)
	if !ok {
		return false
	}

	return num.Sign() > 0
}
