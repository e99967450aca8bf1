package fields

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Months is the vocabulary of month names recognised in root task titles.
var Months = []string{
	"styczeń", "luty", "marzec", "kwiecień", "maj", "czerwiec",
	"lipiec", "sierpień", "wrzesień", "październik", "listopad", "grudzień",
}

const (
	minTokenLength    = 3
	maxMonthDistance  = 1
	maxLengthDistance = 2
)

// ExtractMonth finds a month name in title. An exact case-insensitive
// substring match wins; otherwise each token of at least three letters is
// compared with every month and accepted within edit distance 1 and length
// difference 2. The canonical month name is returned.
func ExtractMonth(title string) (string, bool) {
	if strings.TrimSpace(title) == "" {
		return "", false
	}

	lower := strings.ToLower(title)
	for _, month := range Months {
		if strings.Contains(lower, month) {
			return month, true
		}
	}

	for _, token := range tokenize(lower) {
		tokenLen := utf8.RuneCountInString(token)
		if tokenLen < minTokenLength {
			continue
		}
		for _, month := range Months {
			if abs(tokenLen-utf8.RuneCountInString(month)) > maxLengthDistance {
				continue
			}
			if levenshtein.ComputeDistance(token, month) <= maxMonthDistance {
				return month, true
			}
		}
	}
	return "", false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
