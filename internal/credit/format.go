package credit

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatCredits renders a cents amount as a localized credits string for API
// responses, e.g. 1_500_000 cents -> "1.5" under language.English. Display
// only; accounting always uses the integer cents value.
func FormatCredits(cents int64, tag language.Tag) string {
	credits, err := CentsToCredits(cents)
	if err != nil {
		return "0"
	}
	p := message.NewPrinter(tag)
	f, _ := credits.Float64()
	return p.Sprintf("%v", number.Decimal(f,
		number.MaxFractionDigits(6),
		number.MinFractionDigits(0),
	))
}
