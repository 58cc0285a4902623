package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// Scorer records attempts and keeps each item's miss_count in step: an
// incorrect attempt adds one, a correct attempt takes one away, and the count
// never drops below zero.
//
// Unlike Attempts.Insert, Scorer refuses attempts for unknown items.
type Scorer struct {
	problems *Problems
	attempts *Attempts
	logger   *zap.Logger
}

// NewScorer returns a Scorer over the two repositories.
func NewScorer(problems *Problems, attempts *Attempts) *Scorer {
	return &Scorer{problems: problems, attempts: attempts, logger: problems.opts.logger}
}

// Record stores attempt and adjusts its item's miss_count. It fails with
// ErrOrphanedReference when the item does not exist.
func (s *Scorer) Record(ctx context.Context, attempt quiz.Attempt) (quiz.Attempt, quiz.Item, error) {
	if _, err := s.problems.Get(ctx, attempt.ItemID); err != nil {
		if errors.Is(err, storeerr.ErrNotFound) {
			return quiz.Attempt{}, quiz.Item{}, fmt.Errorf("%w: attempt references item %q", storeerr.ErrOrphanedReference, attempt.ItemID)
		}
		return quiz.Attempt{}, quiz.Item{}, err
	}

	saved, err := s.attempts.Insert(ctx, attempt)
	if err != nil {
		return quiz.Attempt{}, quiz.Item{}, err
	}

	item, err := s.problems.AdjustMissCount(ctx, saved.ItemID, scoreDelta(saved.IsCorrect))
	if err != nil {
		s.logger.Warn("attempt saved but miss count not updated",
			zap.String("attempt", saved.ID), zap.String("item", saved.ItemID), zap.Error(err))
		return saved, quiz.Item{}, fmt.Errorf("updating miss count for %s: %w", saved.ItemID, err)
	}
	return saved, item, nil
}

// Rescore corrects the miss_count of an item whose attempt was scored wrongly.
// Flipping from correct to incorrect undoes the decrement and applies the
// increment; flipping back does the reverse.
func (s *Scorer) Rescore(ctx context.Context, itemID string, wasCorrect, nowCorrect bool) (quiz.Item, error) {
	if wasCorrect == nowCorrect {
		return s.problems.Get(ctx, itemID)
	}
	return s.problems.AdjustMissCount(ctx, itemID, 2*scoreDelta(nowCorrect))
}

// RescoreAttempt changes the verdict on a stored attempt and corrects its
// item's miss_count with Rescore. A correct verdict clears the mistake kind.
// An incorrect one takes kind when given, otherwise keeps the recorded kind,
// falling back to MistakeOther.
func (s *Scorer) RescoreAttempt(ctx context.Context, attemptID string, correct bool, kind quiz.MistakeKind) (quiz.Attempt, quiz.Item, error) {
	at, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return quiz.Attempt{}, quiz.Item{}, err
	}
	if _, err := s.problems.Get(ctx, at.ItemID); err != nil {
		if errors.Is(err, storeerr.ErrNotFound) {
			return quiz.Attempt{}, quiz.Item{}, fmt.Errorf("%w: attempt %s references item %q", storeerr.ErrOrphanedReference, at.ID, at.ItemID)
		}
		return quiz.Attempt{}, quiz.Item{}, err
	}

	was := at.IsCorrect
	at.IsCorrect = correct
	switch {
	case correct:
		at.MistakeKind = quiz.MistakeNone
	case kind != "":
		at.MistakeKind = kind
	case at.MistakeKind == quiz.MistakeNone:
		at.MistakeKind = quiz.MistakeOther
	}
	saved, err := s.attempts.Update(ctx, at)
	if err != nil {
		return quiz.Attempt{}, quiz.Item{}, err
	}

	item, err := s.Rescore(ctx, saved.ItemID, was, correct)
	if err != nil {
		s.logger.Warn("attempt rescored but miss count not updated",
			zap.String("attempt", saved.ID), zap.String("item", saved.ItemID), zap.Error(err))
		return saved, quiz.Item{}, fmt.Errorf("updating miss count for %s: %w", saved.ItemID, err)
	}
	return saved, item, nil
}

func scoreDelta(correct bool) int {
	if correct {
		return -1
	}
	return 1
}
