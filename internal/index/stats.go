package index

import (
	"database/sql"
	"fmt"
	"time"
)

// ItemStat aggregates the attempt history of one item.
type ItemStat struct {
	ItemID        string         `json:"item_id"`
	PromptText    string         `json:"prompt_text"`
	AnswerToken   string         `json:"answer_token"`
	MissCount     int            `json:"miss_count"`
	Attempts      int            `json:"attempts"`
	Correct       int            `json:"correct"`
	Incorrect     int            `json:"incorrect"`
	Accuracy      float64        `json:"accuracy"`
	LastAttempted time.Time      `json:"last_attempted,omitzero"`
	Mistakes      map[string]int `json:"mistakes,omitempty"`
	// Expected is miss_count replayed from the attempt log: +1 per incorrect
	// attempt, -1 per correct one, never below zero.
	Expected int `json:"expected_miss_count"`
	// Drift is the stored miss_count minus Expected. A non-zero value means
	// the counter and the log disagree.
	Drift int `json:"drift"`
}

// Totals summarizes the whole index.
type Totals struct {
	Items           int     `json:"items"`
	Attempts        int     `json:"attempts"`
	Correct         int     `json:"correct"`
	Incorrect       int     `json:"incorrect"`
	Accuracy        float64 `json:"accuracy"`
	OrphanedAttempt int     `json:"orphaned_attempts"`
}

const itemStatsQuery = `
SELECT i.id, i.prompt_text, i.answer_token, i.miss_count,
       COUNT(a.id),
       COALESCE(SUM(CASE WHEN a.is_correct = 1 THEN 1 ELSE 0 END), 0),
       MAX(a.attempted_at)
FROM items i
LEFT JOIN attempts a ON a.item_id = i.id
GROUP BY i.id
ORDER BY i.created_at ASC, i.id ASC`

// ItemStats returns per-item statistics in item creation order.
func (ix *Index) ItemStats() ([]ItemStat, error) {
	rows, err := ix.db.Query(itemStatsQuery)
	if err != nil {
		return nil, fmt.Errorf("querying item stats: %w", err)
	}
	defer rows.Close()

	var stats []ItemStat
	byID := make(map[string]int)
	for rows.Next() {
		var s ItemStat
		var last sql.NullInt64
		if err := rows.Scan(&s.ItemID, &s.PromptText, &s.AnswerToken, &s.MissCount, &s.Attempts, &s.Correct, &last); err != nil {
			return nil, fmt.Errorf("scanning item stats: %w", err)
		}
		s.Incorrect = s.Attempts - s.Correct
		s.Accuracy = ratio(s.Correct, s.Attempts)
		if last.Valid {
			s.LastAttempted = time.Unix(0, last.Int64)
		}
		byID[s.ItemID] = len(stats)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item stats: %w", err)
	}

	mrows, err := ix.db.Query(`SELECT item_id, mistake_kind, COUNT(*) FROM attempts WHERE is_correct = 0 GROUP BY item_id, mistake_kind`)
	if err != nil {
		return nil, fmt.Errorf("querying mistake kinds: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var itemID, kind string
		var n int
		if err := mrows.Scan(&itemID, &kind, &n); err != nil {
			return nil, fmt.Errorf("scanning mistake kinds: %w", err)
		}
		i, ok := byID[itemID]
		if !ok {
			continue
		}
		if stats[i].Mistakes == nil {
			stats[i].Mistakes = make(map[string]int)
		}
		stats[i].Mistakes[kind] = n
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mistake kinds: %w", err)
	}

	if err := ix.replayMissCounts(stats, byID); err != nil {
		return nil, err
	}
	return stats, nil
}

func (ix *Index) replayMissCounts(stats []ItemStat, byID map[string]int) error {
	rows, err := ix.db.Query(`SELECT item_id, is_correct FROM attempts ORDER BY item_id, attempted_at, rowid`)
	if err != nil {
		return fmt.Errorf("querying attempt history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID string
		var correct bool
		if err := rows.Scan(&itemID, &correct); err != nil {
			return fmt.Errorf("scanning attempt history: %w", err)
		}
		i, ok := byID[itemID]
		if !ok {
			continue
		}
		if correct {
			stats[i].Expected = max(stats[i].Expected-1, 0)
		} else {
			stats[i].Expected++
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating attempt history: %w", err)
	}

	for i := range stats {
		stats[i].Drift = stats[i].MissCount - stats[i].Expected
	}
	return nil
}

// Totals returns collection-wide counts.
func (ix *Index) Totals() (Totals, error) {
	var t Totals
	if err := ix.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&t.Items); err != nil {
		return Totals{}, fmt.Errorf("counting items: %w", err)
	}
	err := ix.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_correct = 1 THEN 1 ELSE 0 END), 0) FROM attempts`).Scan(&t.Attempts, &t.Correct)
	if err != nil {
		return Totals{}, fmt.Errorf("counting attempts: %w", err)
	}
	err = ix.db.QueryRow(`SELECT COUNT(*) FROM attempts a WHERE NOT EXISTS (SELECT 1 FROM items i WHERE i.id = a.item_id)`).Scan(&t.OrphanedAttempt)
	if err != nil {
		return Totals{}, fmt.Errorf("counting orphaned attempts: %w", err)
	}
	t.Incorrect = t.Attempts - t.Correct
	t.Accuracy = ratio(t.Correct, t.Attempts)
	return t, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
