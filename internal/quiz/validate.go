package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidItem is returned when an item fails field validation.
var ErrInvalidItem = errors.New("invalid item")

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("kanji", func(fl validator.FieldLevel) bool {
		return ContainsKanji(fl.Field().String())
	})
	_ = validate.RegisterValidation("katakana", func(fl validator.FieldLevel) bool {
		return IsKatakana(fl.Field().String())
	})
}

var fieldMessages = map[string]string{
	"PromptText.required":  "prompt text is required",
	"PromptText.kanji":     "prompt text must contain at least one kanji",
	"AnswerToken.required": "answer token is required",
	"AnswerToken.kanji":    "answer token must contain kanji",
	"Reading.required":     "reading is required",
	"Reading.katakana":     "reading must be hiragana or katakana",
	"ID.required":          "id is required",
	"CreatedAt.required":   "created_at is required",
	"MissCount.gte":        "miss count must not be negative",
}

// Validate checks an item before it is written. Text fields are trimmed and
// the reading normalized on the returned copy.
func Validate(it Item) (Item, error) {
	it.PromptText = strings.TrimSpace(it.PromptText)
	it.AnswerToken = strings.TrimSpace(it.AnswerToken)
	it.Reading = NormalizeReading(it.Reading)

	var msgs []string
	if err := validate.Struct(it); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return it, fmt.Errorf("%w: %v", ErrInvalidItem, err)
		}
		for _, fe := range verrs {
			key := fe.Field() + "." + fe.Tag()
			if msg, ok := fieldMessages[key]; ok {
				msgs = append(msgs, msg)
				continue
			}
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}

	if it.PromptText != "" && it.AnswerToken != "" && !strings.Contains(it.PromptText, it.AnswerToken) {
		msgs = append(msgs, "answer token must appear in the prompt text")
	}

	if len(msgs) > 0 {
		return it, fmt.Errorf("%w: %s", ErrInvalidItem, strings.Join(msgs, "; "))
	}
	return it, nil
}
