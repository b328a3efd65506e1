package task

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Денежные поля хранятся в колонках NUMERIC(12, 2)
const MoneyScale = 2

// MaxAmount - первая сумма, которая уже не помещается в NUMERIC(12, 2)
var MaxAmount = decimal.New(1, 10)

var (
	ErrNegativeAmount = errors.New("сумма не может быть отрицательной")
	ErrAmountScale    = errors.New("не больше двух знаков после запятой")
	ErrAmountTooLarge = errors.New("сумма должна быть меньше 10000000000")
)

// ValidateAmount проверяет стоимость задачи или ставку до записи в хранилище
func ValidateAmount(amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		return ErrNegativeAmount
	case !amount.Equal(amount.Truncate(MoneyScale)):
		return ErrAmountScale
	case amount.GreaterThanOrEqual(MaxAmount):
		return ErrAmountTooLarge
	}
	return nil
}
