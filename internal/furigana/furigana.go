// Package furigana derives katakana readings for Japanese text using the
// kagome morphological analyzer and the IPA dictionary.
package furigana

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/leeovery/quizstore/internal/quiz"
)

// ErrNoReading is returned when some part of the input has no known reading.
var ErrNoReading = errors.New("no reading found")

// IPA features: index 7 is the katakana reading.
const readingFeature = 7

// Suggester turns text into a reading. It is safe for concurrent use.
type Suggester struct {
	once sync.Once
	t    *tokenizer.Tokenizer
	err  error
}

// New returns a Suggester. The dictionary is loaded lazily on first use
// because it is large and most commands never need it.
func New() *Suggester {
	return &Suggester{}
}

func (s *Suggester) load() (*tokenizer.Tokenizer, error) {
	s.once.Do(func() {
		s.t, s.err = tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	})
	return s.t, s.err
}

// Suggest returns the normalized katakana reading of text. Tokens already
// written in kana contribute themselves; a token with no dictionary reading
// fails the whole suggestion with ErrNoReading.
func (s *Suggester) Suggest(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrNoReading)
	}

	t, err := s.load()
	if err != nil {
		return "", fmt.Errorf("loading dictionary: %w", err)
	}

	var sb strings.Builder
	for _, tok := range t.Tokenize(text) {
		if tok.Class == tokenizer.DUMMY || strings.TrimSpace(tok.Surface) == "" {
			continue
		}
		features := tok.Features()
		if len(features) > readingFeature && features[readingFeature] != "*" {
			sb.WriteString(features[readingFeature])
			continue
		}
		if kana := quiz.NormalizeReading(tok.Surface); quiz.IsKatakana(kana) {
			sb.WriteString(kana)
			continue
		}
		return "", fmt.Errorf("%w: %q", ErrNoReading, tok.Surface)
	}

	return quiz.NormalizeReading(sb.String()), nil
}
