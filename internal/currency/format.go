package currency

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const maxFractionDigits = 8

// Format renders amount for display: rounded half away from zero to
// fractionDigits, thousands grouped with commas, followed by the label.
func Format(amount float64, code string, fractionDigits int32) string {
	if fractionDigits < 0 {
		fractionDigits = 0
	}
	if fractionDigits > maxFractionDigits {
		fractionDigits = maxFractionDigits
	}

	var number string
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		number = strconv.FormatFloat(amount, 'f', -1, 64)
	} else {
		fixed := decimal.NewFromFloat(amount).Round(fractionDigits).StringFixed(fractionDigits)
		number = groupThousands(fixed)
	}

	label := Label(code)
	if label == "" {
		return number
	}
	return number + " " + label
}

func groupThousands(fixed string) string {
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, hasFrac := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
