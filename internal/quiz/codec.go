package quiz

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// Canonical column names. Legacy files may use the alias listed next to each
// column; reads accept both, writes always use the canonical name.
const (
	ColID          = "id"
	ColPromptText  = "prompt_text"
	ColAnswerToken = "answer_token"
	ColReading     = "reading"
	ColCreatedAt   = "created_at"
	ColMissCount   = "miss_count"

	ColItemID      = "item_id"
	ColAttemptedAt = "attempted_at"
	ColIsCorrect   = "is_correct"
	ColMistakeKind = "mistake_kind"
	ColMemo        = "memo"
	ColLoggedAt    = "logged_at"

	legacyPromptText  = "sentence"
	legacyAnswerToken = "answer_kanji"
	legacyMissCount   = "incorrect_count"
	legacyItemID      = "problem_id"
)

// ItemHeader is the header written to the items file.
var ItemHeader = []string{ColID, ColPromptText, ColAnswerToken, ColReading, ColCreatedAt, ColMissCount}

// AttemptHeader is the header written to the attempts file.
var AttemptHeader = []string{ColID, ColItemID, ColAttemptedAt, ColIsCorrect, ColMistakeKind, ColMemo, ColLoggedAt}

// Column alias groups, canonical name first.
var (
	MissCountColumns = []string{ColMissCount, legacyMissCount}
	ItemIDColumns    = []string{ColItemID, legacyItemID}
	promptColumns    = []string{ColPromptText, legacyPromptText}
	answerColumns    = []string{ColAnswerToken, legacyAnswerToken}
)

// TimeLayout is the layout used when writing timestamps. It is ISO-8601 with
// microsecond precision, the form existing data files already use.
const TimeLayout = "2006-01-02T15:04:05.999999Z07:00"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseTime accepts ISO-8601 timestamps with or without a zone offset and
// with or without fractional seconds. Zone-less values are read as local time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ParseBool accepts exactly True, False, true, false, 1 and 0.
func ParseBool(s string) (bool, error) {
	switch s {
	case "True", "true", "1":
		return true, nil
	case "False", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// IsBoolLiteral reports whether s is one of the accepted boolean literals.
func IsBoolLiteral(s string) bool {
	_, err := ParseBool(s)
	return err == nil
}

// FormatBool renders a boolean the way the attempts file stores it.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ParseMissCount reads a miss count. An empty value is zero.
func ParseMissCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid miss count %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative miss count %d", n)
	}
	return n, nil
}

func requireID(row csvrow.Row) (string, error) {
	id, ok := row.Get(ColID)
	if !ok || strings.TrimSpace(id) == "" {
		return "", storeerr.Malformed(row.Line, ColID, "missing id")
	}
	return id, nil
}

func optional(row csvrow.Row, names ...string) string {
	v, _, _ := row.Lookup(names...)
	return v
}

// DecodeItem maps a row to an Item. Only id is mandatory: a missing
// miss_count is zero and other missing text columns are empty. A missing
// created_at decodes as the zero time.
func DecodeItem(row csvrow.Row) (Item, error) {
	id, err := requireID(row)
	if err != nil {
		return Item{}, err
	}

	it := Item{
		ID:          id,
		PromptText:  optional(row, promptColumns...),
		AnswerToken: optional(row, answerColumns...),
		Reading:     NormalizeReading(optional(row, ColReading)),
	}

	if raw, ok := row.Get(ColCreatedAt); ok && strings.TrimSpace(raw) != "" {
		created, err := ParseTime(raw)
		if err != nil {
			return Item{}, storeerr.Malformed(row.Line, ColCreatedAt, "%v", err)
		}
		it.CreatedAt = created
	}

	if raw, col, ok := row.Lookup(MissCountColumns...); ok {
		n, err := ParseMissCount(raw)
		if err != nil {
			return Item{}, storeerr.Malformed(row.Line, col, "%v", err)
		}
		it.MissCount = n
	}

	return it, nil
}

// EncodeItem maps an Item to a row in ItemHeader order.
func EncodeItem(it Item) []string {
	return []string{
		it.ID,
		it.PromptText,
		it.AnswerToken,
		it.Reading,
		FormatTime(it.CreatedAt),
		strconv.Itoa(it.MissCount),
	}
}

// DecodeAttempt maps a row to an Attempt. A missing mistake_kind is
// MistakeNone, a missing memo is empty, and a missing logged_at copies
// attempted_at. is_correct must be an accepted boolean literal.
func DecodeAttempt(row csvrow.Row) (Attempt, error) {
	id, err := requireID(row)
	if err != nil {
		return Attempt{}, err
	}

	a := Attempt{
		ID:          id,
		ItemID:      optional(row, ItemIDColumns...),
		Memo:        optional(row, ColMemo),
		MistakeKind: MistakeNone,
	}

	if raw, ok := row.Get(ColAttemptedAt); ok && strings.TrimSpace(raw) != "" {
		at, err := ParseTime(raw)
		if err != nil {
			return Attempt{}, storeerr.Malformed(row.Line, ColAttemptedAt, "%v", err)
		}
		a.AttemptedAt = at
	}

	raw, _ := row.Get(ColIsCorrect)
	correct, err := ParseBool(raw)
	if err != nil {
		return Attempt{}, storeerr.Malformed(row.Line, ColIsCorrect, "%v", err)
	}
	a.IsCorrect = correct

	if kind := strings.TrimSpace(optional(row, ColMistakeKind)); kind != "" {
		a.MistakeKind = MistakeKind(kind)
	}

	a.LoggedAt = a.AttemptedAt
	if raw, ok := row.Get(ColLoggedAt); ok && strings.TrimSpace(raw) != "" {
		logged, err := ParseTime(raw)
		if err != nil {
			return Attempt{}, storeerr.Malformed(row.Line, ColLoggedAt, "%v", err)
		}
		a.LoggedAt = logged
	}

	return a, nil
}

// EncodeAttempt maps an Attempt to a row in AttemptHeader order.
func EncodeAttempt(a Attempt) []string {
	kind := a.MistakeKind
	if kind == "" {
		kind = MistakeNone
	}
	logged := a.LoggedAt
	if logged.IsZero() {
		logged = a.AttemptedAt
	}
	return []string{
		a.ID,
		a.ItemID,
		FormatTime(a.AttemptedAt),
		FormatBool(a.IsCorrect),
		string(kind),
		a.Memo,
		FormatTime(logged),
	}
}
