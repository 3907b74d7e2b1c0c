package orders

import "github.com/shopspring/decimal"

// TemplateShares is the creator/platform split of a paid template price.
type TemplateShares struct {
	CreatorPaise  int64
	PlatformPaise int64
}

// SplitTemplatePrice divides a template price between its creator and the
// platform at the given commission percent. Sub-paise remainders round toward
// the platform so the two shares always sum to the price.
func SplitTemplatePrice(pricePaise int64, commissionPercent int) TemplateShares {
	if pricePaise <= 0 {
		return TemplateShares{}
	}
	if commissionPercent < 0 {
		commissionPercent = 0
	}
	if commissionPercent > 100 {
		commissionPercent = 100
	}

	price := decimal.NewFromInt(pricePaise)
	commission := decimal.NewFromInt(int64(commissionPercent)).Div(decimal.NewFromInt(100))

	creator := price.Mul(decimal.NewFromInt(1).Sub(commission)).Floor()
	return TemplateShares{
		CreatorPaise:  creator.IntPart(),
		PlatformPaise: pricePaise - creator.IntPart(),
	}
}
