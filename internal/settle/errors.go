package settle

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// RepaymentError reports that the final balance cannot cover principal plus
// fee. Shortfall is Balance - Required and is never positive.
type RepaymentError struct {
	Shortfall *big.Int
	Balance   *big.Int
	Required  *big.Int
}

func (e *RepaymentError) Error() string {
	return fmt.Sprintf("settle: %v: shortfall %s (balance %s, required %s)",
		domain.ErrInsufficientRepayment, e.Shortfall, e.Balance, e.Required)
}

func (e *RepaymentError) Unwrap() error { return domain.ErrInsufficientRepayment }
