package breakdown

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Euro formats an amount with thousands grouping, e.g. "€3,200".
func Euro(v float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("€%v", number.Decimal(v, number.MaxFractionDigits(2)))
}

// Percent formats v (already in percent) with at most one decimal, e.g. "72.5%".
func Percent(v float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v%%", number.Decimal(v, number.MaxFractionDigits(1)))
}

// Number formats v with grouping and at most one decimal.
func Number(v float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(1)))
}
