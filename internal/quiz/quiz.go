// Package quiz defines the Item and Attempt models, id generation, field
// validation, and the row codec that maps them to and from data-file rows.
package quiz

import (
	"time"

	"github.com/google/uuid"
)

// MistakeKind classifies why an attempt was scored incorrect.
type MistakeKind string

const (
	MistakeNone      MistakeKind = "none"
	MistakeReading   MistakeKind = "reading"
	MistakeStroke    MistakeKind = "stroke"
	MistakeConfusion MistakeKind = "confusion"
	MistakeOther     MistakeKind = "other"
)

// KnownMistakeKinds lists the kinds offered by the scoring screen. Any other
// value read from disk is preserved verbatim.
var KnownMistakeKinds = []MistakeKind{MistakeNone, MistakeReading, MistakeStroke, MistakeConfusion, MistakeOther}

// Item is a quiz problem: a prompt sentence, the ideographic answer token
// inside it, and the token's reading.
type Item struct {
	ID          string    `json:"id" validate:"required"`
	PromptText  string    `json:"prompt_text" validate:"required,kanji"`
	AnswerToken string    `json:"answer_token" validate:"required,kanji"`
	Reading     string    `json:"reading" validate:"required,katakana"`
	CreatedAt   time.Time `json:"created_at" validate:"required"`
	MissCount   int       `json:"miss_count" validate:"gte=0"`
}

// Attempt is a single scoring event for an item. Attempts are never mutated
// after they are written.
type Attempt struct {
	ID          string      `json:"id"`
	ItemID      string      `json:"item_id"`
	AttemptedAt time.Time   `json:"attempted_at"`
	IsCorrect   bool        `json:"is_correct"`
	MistakeKind MistakeKind `json:"mistake_kind"`
	Memo        string      `json:"memo,omitempty"`
	LoggedAt    time.Time   `json:"logged_at"`
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// NewItem builds an Item with a fresh id and a normalized reading.
func NewItem(prompt, answer, reading string, now time.Time) Item {
	return Item{
		ID:          NewID(),
		PromptText:  prompt,
		AnswerToken: answer,
		Reading:     NormalizeReading(reading),
		CreatedAt:   now.Truncate(time.Microsecond),
	}
}

// NewAttempt builds an Attempt with a fresh id. Correct attempts always carry
// MistakeNone.
func NewAttempt(itemID string, correct bool, kind MistakeKind, memo string, now time.Time) Attempt {
	now = now.Truncate(time.Microsecond)
	if correct || kind == "" {
		kind = MistakeNone
	}
	return Attempt{
		ID:          NewID(),
		ItemID:      itemID,
		AttemptedAt: now,
		IsCorrect:   correct,
		MistakeKind: kind,
		Memo:        memo,
		LoggedAt:    now,
	}
}
