package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, tx app.Tx) error {
		c := domain.Challenge{Name: "ghost", Type: domain.SubQuestionType}
		if err := tx.CreateChallenge(ctx, &c); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.WithTx(ctx, func(ctx context.Context, tx app.Tx) error {
		_, err := tx.GetChallenge(ctx, 1)
		return err
	})
	if !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected rolled back challenge to be gone, got %v", err)
	}
}

func TestStoreUniqueKeys(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	acct := domain.AccountKey{UserID: 7}

	err := store.WithTx(ctx, func(ctx context.Context, tx app.Tx) error {
		c := domain.Challenge{Name: "web", Type: domain.SubQuestionType}
		if err := tx.CreateChallenge(ctx, &c); err != nil {
			return err
		}
		q := domain.SubQuestion{ChallengeID: c.ID, Num: 1, Text: "a", Points: 10}
		if err := tx.CreateQuestion(ctx, &q); err != nil {
			return err
		}
		dup := domain.SubQuestion{ChallengeID: c.ID, Num: 1, Text: "b", Points: 10}
		if err := tx.CreateQuestion(ctx, &dup); !errors.Is(err, ErrDuplicateQuestion) {
			t.Fatalf("expected duplicate question error, got %v", err)
		}

		first, err := tx.InsertPartialSolve(ctx, &domain.PartialSolve{ChallengeID: c.ID, Account: acct, QuestionNum: 1})
		if err != nil || !first {
			t.Fatalf("first insert: inserted=%v err=%v", first, err)
		}
		second, err := tx.InsertPartialSolve(ctx, &domain.PartialSolve{ChallengeID: c.ID, Account: acct, QuestionNum: 1})
		if err != nil || second {
			t.Fatalf("second insert: inserted=%v err=%v", second, err)
		}

		ok, err := tx.CreateSolve(ctx, &domain.Solve{ChallengeID: c.ID, Account: acct})
		if err != nil || !ok {
			t.Fatalf("first solve: ok=%v err=%v", ok, err)
		}
		ok, err = tx.CreateSolve(ctx, &domain.Solve{ChallengeID: c.ID, Account: acct})
		if err != nil || ok {
			t.Fatalf("second solve: ok=%v err=%v", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if got := len(store.Solves(1)); got != 1 {
		t.Fatalf("expected one solve, got %d", got)
	}
}

func TestStorePartialSolveRecords(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	if err := store.CreateAccount(ctx, domain.Account{ID: 3, Kind: domain.AccountTeam, Name: "Red Team"}); err != nil {
		t.Fatalf("create team: %v", err)
	}
	if err := store.CreateAccount(ctx, domain.Account{ID: 9, Kind: "robot"}); err == nil {
		t.Fatalf("expected unknown account kind to fail")
	}

	var challengeID int64
	err := store.WithTx(ctx, func(ctx context.Context, tx app.Tx) error {
		c := domain.Challenge{Name: "forensics", Type: domain.SubQuestionType}
		if err := tx.CreateChallenge(ctx, &c); err != nil {
			return err
		}
		challengeID = c.ID
		q := domain.SubQuestion{ChallengeID: c.ID, Num: 1, Text: "Which host?", Points: 10}
		if err := tx.CreateQuestion(ctx, &q); err != nil {
			return err
		}
		for i, provided := range []string{"alpha", "Bravo"} {
			ps := domain.PartialSolve{
				ChallengeID: c.ID,
				Account:     domain.AccountKey{TeamID: 3, UserID: int64(20 + i)},
				QuestionNum: 1 + i,
				Provided:    provided,
				Date:        base.Add(time.Duration(i) * time.Minute),
			}
			if _, err := tx.InsertPartialSolve(ctx, &ps); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	recs, err := store.PartialSolveRecords(ctx, domain.ReportQuery{ChallengeID: &challengeID})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Solve.Provided != "Bravo" {
		t.Fatalf("expected newest first, got %q", recs[0].Solve.Provided)
	}
	if recs[1].QuestionText != "Which host?" || recs[1].TeamName != "Red Team" || recs[1].ChallengeName != "forensics" {
		t.Fatalf("unexpected join %+v", recs[1])
	}
	if recs[0].QuestionText != "" {
		t.Fatalf("question 2 does not exist, got text %q", recs[0].QuestionText)
	}

	recs, _ = store.PartialSolveRecords(ctx, domain.ReportQuery{ProvidedContains: "BRAV"})
	if len(recs) != 1 {
		t.Fatalf("expected substring filter to match once, got %d", len(recs))
	}
	acct := int64(20)
	recs, _ = store.PartialSolveRecords(ctx, domain.ReportQuery{AccountID: &acct})
	if len(recs) != 1 || recs[0].Solve.Account.UserID != 20 {
		t.Fatalf("expected user filter to match once, got %+v", recs)
	}
}
