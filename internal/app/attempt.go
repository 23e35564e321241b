package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"subquestion-challenge-service/internal/domain"
)

const (
	msgUseQuestionInterface = "Multi-question challenges must be submitted via the question selection interface"
	msgInvalidQuestionNum   = "Invalid question number"
	msgEmptySubmission      = "Submission cannot be empty"
	msgNoQuestions          = "This challenge has no questions"
	msgNoFlag               = "This question has no flag set"
)

func rejected(num int, format string, args ...any) domain.Outcome {
	return domain.Outcome{
		Status:      domain.StatusIncorrect,
		Message:     fmt.Sprintf(format, args...),
		QuestionNum: num,
	}
}

// Attempt evaluates a submission addressed to one question. Client mistakes and data problems
// come back as an Incorrect outcome; the error is reserved for storage failures.
func (s *SubQuestionService) Attempt(ctx context.Context, challengeID int64, acct domain.AccountKey, sub domain.Submission) (domain.Outcome, error) {
	raw := strings.TrimSpace(sub.QuestionNum)
	if raw == "" {
		s.metrics.Attempt("rejected")
		return rejected(0, msgUseQuestionInterface), nil
	}
	num, err := strconv.Atoi(raw)
	if err != nil {
		s.metrics.Attempt("rejected")
		return rejected(0, msgInvalidQuestionNum), nil
	}
	provided := strings.TrimSpace(sub.Provided)
	if provided == "" {
		s.metrics.Attempt("rejected")
		return rejected(num, msgEmptySubmission), nil
	}

	var (
		out      domain.Outcome
		recorded bool
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := s.getOwnChallenge(ctx, tx, challengeID); err != nil {
			return err
		}
		questions, err := tx.ListQuestions(ctx, challengeID)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			out = rejected(num, msgNoQuestions)
			return nil
		}

		q, err := tx.GetQuestion(ctx, challengeID, num)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			out = rejected(num, "Question %d does not exist", num)
			return nil
		}
		if err != nil {
			return err
		}

		flag, err := tx.GetFlag(ctx, q.FlagID)
		if errors.Is(err, domain.ErrFlagNotFound) {
			s.log.Warn("question has no flag",
				zap.Int64("challenge_id", challengeID),
				zap.Int("question_num", num),
				zap.Int64("flag_id", q.FlagID))
			out = rejected(num, msgNoFlag)
			return nil
		}
		if err != nil {
			return err
		}

		ok, err := s.flags.Compare(flag, provided)
		if errors.Is(err, domain.ErrUnknownFlagType) {
			s.log.Warn("question flag cannot be compared",
				zap.Int64("challenge_id", challengeID),
				zap.Int("question_num", num),
				zap.String("flag_type", flag.Type))
			out = rejected(num, msgNoFlag)
			return nil
		}
		if err != nil {
			return err
		}
		if !ok {
			out = rejected(num, "Question %d is incorrect", num)
			return nil
		}

		exists, err := tx.HasPartialSolve(ctx, challengeID, acct, num)
		if err != nil {
			return err
		}
		if !exists {
			recorded, err = tx.InsertPartialSolve(ctx, &domain.PartialSolve{
				ChallengeID: challengeID,
				Account:     acct,
				QuestionNum: num,
				IP:          sub.IP,
				Provided:    provided,
				Date:        s.now(),
			})
			if err != nil {
				return fmt.Errorf("record partial solve: %w", err)
			}
		}

		solved, err := solvedCount(ctx, tx, challengeID, acct, questions)
		if err != nil {
			return err
		}
		out = domain.Outcome{QuestionNum: num, Solved: solved, Total: len(questions)}
		if solved == len(questions) {
			out.Status = domain.StatusCompleted
			out.Message = fmt.Sprintf("Congratulations! You have completed all %d questions!", len(questions))
		} else {
			out.Status = domain.StatusPartial
			out.Message = fmt.Sprintf("Question %d correct! %d/%d questions completed", num, solved, len(questions))
		}
		return nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}

	s.metrics.Attempt(out.Status.String())
	if recorded {
		s.metrics.PartialSolveRecorded()
		s.events.Publish(domain.ProgressEvent{
			ChallengeID: challengeID,
			Account:     acct,
			QuestionNum: num,
			Solved:      out.Solved,
			Total:       out.Total,
			At:          s.now(),
		})
	}
	return out, nil
}

// Solve commits the host solve record once every current question is answered. The count is
// re-checked here because the question set may have changed since the attempt was evaluated.
func (s *SubQuestionService) Solve(ctx context.Context, challengeID int64, acct domain.AccountKey, sub domain.Submission) error {
	var (
		committed     bool
		solved, total int
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := s.getOwnChallenge(ctx, tx, challengeID); err != nil {
			return err
		}
		questions, err := tx.ListQuestions(ctx, challengeID)
		if err != nil {
			return err
		}
		total = len(questions)
		solved, err = solvedCount(ctx, tx, challengeID, acct, questions)
		if err != nil {
			return err
		}
		if total == 0 || solved != total {
			s.log.Warn("solve requested before every question was answered",
				zap.Int64("challenge_id", challengeID),
				zap.Int64("team_id", acct.TeamID),
				zap.Int64("user_id", acct.UserID),
				zap.Int("solved", solved),
				zap.Int("total", total))
			return nil
		}
		committed, err = tx.CreateSolve(ctx, &domain.Solve{
			ChallengeID: challengeID,
			Account:     acct,
			IP:          sub.IP,
			Provided:    strings.TrimSpace(sub.Provided),
			Date:        s.now(),
		})
		return err
	})
	if err != nil {
		return err
	}
	if committed {
		s.metrics.Completed()
		s.events.Publish(domain.ProgressEvent{
			ChallengeID: challengeID,
			Account:     acct,
			Solved:      solved,
			Total:       total,
			Completed:   true,
			At:          s.now(),
		})
	}
	return nil
}

// solvedCount counts the account's partial solves that belong to a current question.
func solvedCount(ctx context.Context, tx Tx, challengeID int64, acct domain.AccountKey, questions []domain.SubQuestion) (int, error) {
	nums, err := tx.SolvedQuestionNums(ctx, challengeID, acct)
	if err != nil {
		return 0, err
	}
	current := make(map[int]bool, len(questions))
	for _, q := range questions {
		current[q.Num] = true
	}
	n := 0
	for _, num := range nums {
		if current[num] {
			n++
		}
	}
	return n, nil
}
