package common

import (
	"strings"
)

// YearFromDate returns the leading year of a dash separated date such as
// "2010-07-15". Anything that is not four digits yields "".
func YearFromDate(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	year, _, _ := strings.Cut(value, "-")
	if len(year) != 4 {
		return ""
	}
	for _, c := range year {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return year
}

// CleanValue trims a catalog field and maps the "N/A" placeholder to "".
func CleanValue(raw string) string {
	value := strings.TrimSpace(raw)
	if strings.EqualFold(value, "n/a") {
		return ""
	}
	return value
}
