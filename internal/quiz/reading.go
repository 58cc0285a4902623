package quiz

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	hiraganaFirst = 0x3041
	hiraganaLast  = 0x3096
	kanaOffset    = 0x60

	katakanaFirst  = 0x30A1
	katakanaLast   = 0x30FA
	prolongedSound = 0x30FC

	spacingVoiced     = 0x309B
	spacingSemiVoiced = 0x309C
	combVoiced        = 0x3099
	combSemiVoiced    = 0x309A
)

// NormalizeReading folds a reading to full-width katakana. Half-width
// katakana (including separate voicing marks) is widened and composed, and
// hiragana is shifted into the katakana block. Other characters pass through.
func NormalizeReading(s string) string {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return ""
	}

	// Folding turns half-width voicing marks into the spacing forms, which
	// never compose. Swap them for the combining forms so NFC can merge
	// カ+゛ into ガ.
	s = strings.Map(func(r rune) rune {
		switch r {
		case spacingVoiced:
			return combVoiced
		case spacingSemiVoiced:
			return combSemiVoiced
		}
		return r
	}, s)
	s = norm.NFC.String(s)

	return strings.Map(func(r rune) rune {
		if r >= hiraganaFirst && r <= hiraganaLast {
			return r + kanaOffset
		}
		return r
	}, s)
}

// IsKatakana reports whether s is non-empty and consists only of full-width
// katakana and the prolonged sound mark.
func IsKatakana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < katakanaFirst || r > katakanaLast) && r != prolongedSound {
			return false
		}
	}
	return true
}

// ContainsKanji reports whether s contains at least one Han ideograph.
func ContainsKanji(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

