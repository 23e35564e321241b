package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"subquestion-challenge-service/internal/domain"
)

type reconcileStats struct {
	created int
	updated int
	deleted int
}

// Update applies either a basic update (scalar fields only) or, when in.UpdateQuestions is
// set, reconciles the stored question set against the complete desired set in in.Questions.
func (s *SubQuestionService) Update(ctx context.Context, challengeID int64, in domain.UpdateInput) (domain.Challenge, error) {
	if !in.UpdateQuestions {
		return s.updateFields(ctx, challengeID, in.Fields)
	}
	if err := validateQuestions(in.Questions); err != nil {
		return domain.Challenge{}, err
	}
	desired := desiredByNum(in.Questions)

	var (
		c     domain.Challenge
		stats reconcileStats
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		c, err = s.getOwnChallenge(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		if len(desired) == 0 {
			s.log.Warn("question update without questions, challenge left unchanged",
				zap.Int64("challenge_id", challengeID))
			return nil
		}
		in.Fields.Apply(&c)

		stats, err = reconcileQuestions(ctx, tx, challengeID, desired)
		if err != nil {
			return err
		}
		final, err := tx.ListQuestions(ctx, challengeID)
		if err != nil {
			return err
		}
		c.Value = sumPoints(final)
		return tx.UpdateChallenge(ctx, c)
	})
	if err != nil {
		return domain.Challenge{}, err
	}

	if len(desired) == 0 {
		return c, nil
	}
	s.metrics.Reconciled("create", stats.created)
	s.metrics.Reconciled("update", stats.updated)
	s.metrics.Reconciled("delete", stats.deleted)
	s.cache.Invalidate(ctx, challengeID)
	s.log.Info("questions reconciled",
		zap.Int64("challenge_id", challengeID),
		zap.Int("created", stats.created),
		zap.Int("updated", stats.updated),
		zap.Int("deleted", stats.deleted),
		zap.Int("value", c.Value))
	return c, nil
}

func (s *SubQuestionService) updateFields(ctx context.Context, challengeID int64, fields domain.ChallengeFields) (domain.Challenge, error) {
	var c domain.Challenge
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		c, err = s.getOwnChallenge(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		fields.Apply(&c)
		return tx.UpdateChallenge(ctx, c)
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return c, nil
}

// reconcileQuestions makes the stored question set match desired, which must be non-empty.
// Questions whose number is absent are deleted with their flag and ledger entries; complete
// entries update in place (keeping flag identity) or create; incomplete entries are skipped.
func reconcileQuestions(ctx context.Context, tx Tx, challengeID int64, desired []domain.QuestionInput) (reconcileStats, error) {
	var stats reconcileStats

	existing, err := tx.ListQuestions(ctx, challengeID)
	if err != nil {
		return stats, err
	}
	wanted := make(map[int]bool, len(desired))
	for _, d := range desired {
		wanted[d.Num] = true
	}

	byNum := make(map[int]domain.SubQuestion, len(existing))
	owned := make(map[int64]bool, len(existing))
	for _, q := range existing {
		if wanted[q.Num] {
			byNum[q.Num] = q
			owned[q.FlagID] = true
			continue
		}
		if err := tx.DeleteFlag(ctx, q.FlagID); err != nil && !errors.Is(err, domain.ErrFlagNotFound) {
			return stats, fmt.Errorf("delete flag of question %d: %w", q.Num, err)
		}
		if err := tx.DeletePartialSolvesForQuestion(ctx, challengeID, q.Num); err != nil {
			return stats, fmt.Errorf("delete partial solves of question %d: %w", q.Num, err)
		}
		if err := tx.DeleteQuestion(ctx, q.ID); err != nil {
			return stats, fmt.Errorf("delete question %d: %w", q.Num, err)
		}
		stats.deleted++
	}

	for _, in := range desired {
		if !in.Complete() {
			continue
		}
		cur, ok := byNum[in.Num]
		if !ok {
			pinned, err := adoptPinnedFlag(ctx, tx, challengeID, in, owned)
			if err != nil {
				return stats, err
			}
			q, err := createQuestion(ctx, tx, challengeID, in, pinned)
			if err != nil {
				return stats, err
			}
			owned[q.FlagID] = true
			stats.created++
			continue
		}

		flagID, err := refreshOwnedFlag(ctx, tx, challengeID, cur, in, owned)
		if err != nil {
			return stats, err
		}
		cur.Text = in.Text
		cur.Points = in.PointsOrDefault()
		cur.FlagID = flagID
		if err := tx.UpdateQuestion(ctx, cur); err != nil {
			return stats, fmt.Errorf("update question %d: %w", in.Num, err)
		}
		stats.updated++
	}
	return stats, nil
}

// refreshOwnedFlag rewrites the content of the question's flag, keeping its identity so that
// recorded partial solves stay valid. A question whose flag went missing gets the pinned flag
// or a new one.
func refreshOwnedFlag(ctx context.Context, tx Tx, challengeID int64, cur domain.SubQuestion, in domain.QuestionInput, owned map[int64]bool) (int64, error) {
	_, err := tx.GetFlag(ctx, cur.FlagID)
	switch {
	case err == nil:
		if err := tx.UpdateFlagContent(ctx, cur.FlagID, in.FlagContent); err != nil {
			return 0, fmt.Errorf("update flag of question %d: %w", in.Num, err)
		}
		return cur.FlagID, nil
	case !errors.Is(err, domain.ErrFlagNotFound):
		return 0, err
	}

	delete(owned, cur.FlagID)
	pinned, err := adoptPinnedFlag(ctx, tx, challengeID, in, owned)
	if err != nil {
		return 0, err
	}
	if pinned != 0 {
		owned[pinned] = true
		return pinned, nil
	}
	flag := domain.Flag{ChallengeID: challengeID, Type: domain.FlagTypeStatic, Content: in.FlagContent}
	if err := tx.CreateFlag(ctx, &flag); err != nil {
		return 0, fmt.Errorf("create flag for question %d: %w", in.Num, err)
	}
	owned[flag.ID] = true
	return flag.ID, nil
}

// adoptPinnedFlag returns the entry's pinned flag id with its content refreshed, or zero when
// the entry pins nothing usable: a flag of another challenge or one owned by another question.
func adoptPinnedFlag(ctx context.Context, tx Tx, challengeID int64, in domain.QuestionInput, owned map[int64]bool) (int64, error) {
	if in.FlagID == nil || *in.FlagID == 0 || owned[*in.FlagID] {
		return 0, nil
	}
	flag, err := tx.GetFlag(ctx, *in.FlagID)
	if errors.Is(err, domain.ErrFlagNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if flag.ChallengeID != challengeID {
		return 0, nil
	}
	if err := tx.UpdateFlagContent(ctx, flag.ID, in.FlagContent); err != nil {
		return 0, fmt.Errorf("update pinned flag %d: %w", flag.ID, err)
	}
	return flag.ID, nil
}
