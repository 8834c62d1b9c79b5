package currency

var labels = map[string]string{
	"EGP": "ج.م",
	"SAR": "ر.س",
	"USD": "$",
}

// Label returns the display glyph for code, or code itself when unknown.
func Label(code string) string {
	if l, ok := labels[code]; ok {
		return l
	}
	return code
}
