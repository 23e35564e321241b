package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
	"subquestion-challenge-service/internal/flags"
	"subquestion-challenge-service/internal/infra/memory"
	"subquestion-challenge-service/internal/metrics"
)

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...app.Option) (*app.SubQuestionService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	base := []app.Option{
		app.WithLogger(zaptest.NewLogger(t)),
		app.WithMetrics(metrics.New()),
		app.WithClock(func() time.Time { return testNow }),
	}
	svc := app.NewSubQuestionService(store, flags.NewRegistry(), append(base, opts...)...)
	return svc, store
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

// scenarioChallenge creates the two-question challenge used across tests.
func scenarioChallenge(t *testing.T, svc *app.SubQuestionService) domain.Challenge {
	t.Helper()
	c, err := svc.Create(context.Background(), domain.CreateInput{
		Fields: domain.ChallengeFields{Name: strp("Incident response"), Category: strp("forensics")},
		Questions: []domain.QuestionInput{
			{Num: 1, Text: "Q1?", Points: intp(100), FlagContent: "flagA"},
			{Num: 2, Text: "Q2?", Points: intp(50), FlagContent: "flagB"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func questions(t *testing.T, store *memory.Store, challengeID int64) []domain.SubQuestion {
	t.Helper()
	qs, err := store.LoadQuestions(context.Background(), challengeID)
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	return qs
}

func challenge(t *testing.T, store *memory.Store, id int64) domain.Challenge {
	t.Helper()
	var c domain.Challenge
	err := store.WithTx(context.Background(), func(ctx context.Context, tx app.Tx) error {
		var err error
		c, err = tx.GetChallenge(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	return c
}

func flag(t *testing.T, store *memory.Store, id int64) (domain.Flag, error) {
	t.Helper()
	var f domain.Flag
	err := store.WithTx(context.Background(), func(ctx context.Context, tx app.Tx) error {
		var err error
		f, err = tx.GetFlag(ctx, id)
		return err
	})
	return f, err
}

func solvedNums(t *testing.T, store *memory.Store, challengeID int64, acct domain.AccountKey) []int {
	t.Helper()
	var nums []int
	err := store.WithTx(context.Background(), func(ctx context.Context, tx app.Tx) error {
		var err error
		nums, err = tx.SolvedQuestionNums(ctx, challengeID, acct)
		return err
	})
	if err != nil {
		t.Fatalf("solved nums: %v", err)
	}
	return nums
}

func assertValueInvariant(t *testing.T, store *memory.Store, challengeID int64) {
	t.Helper()
	total := 0
	for _, q := range questions(t, store, challengeID) {
		total += q.Points
	}
	if got := challenge(t, store, challengeID).Value; got != total {
		t.Fatalf("value %d does not match question points %d", got, total)
	}
}

func TestCreateComputesValueAndDefaults(t *testing.T) {
	svc, store := newTestService(t)
	c := scenarioChallenge(t, svc)

	if c.Value != 150 {
		t.Fatalf("expected value 150, got %d", c.Value)
	}
	if c.State != domain.StateHidden {
		t.Fatalf("expected hidden state, got %q", c.State)
	}
	if c.Type != domain.SubQuestionType {
		t.Fatalf("unexpected type %q", c.Type)
	}
	qs := questions(t, store, c.ID)
	if len(qs) != 2 || qs[0].Num != 1 || qs[1].Num != 2 {
		t.Fatalf("unexpected questions %+v", qs)
	}
	f, err := flag(t, store, qs[1].FlagID)
	if err != nil {
		t.Fatalf("flag of question 2: %v", err)
	}
	if f.Type != domain.FlagTypeStatic || f.Content != "flagB" || f.ChallengeID != c.ID {
		t.Fatalf("unexpected flag %+v", f)
	}
	assertValueInvariant(t, store, c.ID)
}

func TestCreateDropsIncompleteEntries(t *testing.T) {
	svc, store := newTestService(t)
	c, err := svc.Create(context.Background(), domain.CreateInput{
		Fields: domain.ChallengeFields{Name: strp("partial"), State: strp(domain.StateVisible)},
		Questions: []domain.QuestionInput{
			{Num: 1, Text: "kept", FlagContent: "f1"},
			{Num: 2, Points: intp(500)},
			{Num: 3, FlagContent: "orphan"},
			{Num: 4, Text: "no answer", Points: intp(30)},
			{Num: 5, Text: "free", Points: intp(0), FlagContent: "f5"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.State != domain.StateVisible {
		t.Fatalf("explicit state overridden: %q", c.State)
	}
	qs := questions(t, store, c.ID)
	if len(qs) != 2 || qs[0].Num != 1 || qs[1].Num != 5 {
		t.Fatalf("expected questions 1 and 5, got %+v", qs)
	}
	if qs[0].Points != domain.DefaultQuestionPoints || qs[1].Points != 0 {
		t.Fatalf("unexpected points %+v", qs)
	}
	if c.Value != domain.DefaultQuestionPoints {
		t.Fatalf("expected value %d, got %d", domain.DefaultQuestionPoints, c.Value)
	}
}

func TestCreateWithoutQuestions(t *testing.T) {
	svc, store := newTestService(t)
	c, err := svc.Create(context.Background(), domain.CreateInput{Fields: domain.ChallengeFields{Name: strp("empty")}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Value != 0 || len(questions(t, store, c.ID)) != 0 {
		t.Fatalf("expected empty challenge, got value %d", c.Value)
	}
}

func TestCreateRejectsNegativePoints(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), domain.CreateInput{
		Questions: []domain.QuestionInput{{Num: 1, Text: "q", Points: intp(-5), FlagContent: "f"}},
	})
	if !errors.Is(err, domain.ErrNegativePoints) {
		t.Fatalf("expected ErrNegativePoints, got %v", err)
	}
}

func TestReadMarksSolvedForCaller(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := scenarioChallenge(t, svc)
	alice := domain.AccountKey{UserID: 1}
	bob := domain.AccountKey{UserID: 2}

	if _, err := svc.Attempt(ctx, c.ID, alice, domain.Submission{QuestionNum: "2", Provided: "flagB"}); err != nil {
		t.Fatalf("attempt: %v", err)
	}

	view, err := svc.Read(ctx, c.ID, &alice)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(view.Questions) != 2 || view.Questions[0].Solved || !view.Questions[1].Solved {
		t.Fatalf("unexpected solved markers %+v", view.Questions)
	}
	if view.TypeData.ID != domain.SubQuestionType || view.TypeData.Name != domain.SubQuestionTypeName {
		t.Fatalf("unexpected type data %+v", view.TypeData)
	}

	view, _ = svc.Read(ctx, c.ID, &bob)
	if view.Questions[1].Solved {
		t.Fatalf("bob sees alice's progress")
	}
	view, _ = svc.Read(ctx, c.ID, nil)
	for _, q := range view.Questions {
		if q.Solved {
			t.Fatalf("anonymous view has solved question %d", q.Num)
		}
	}
}

func TestReadUsesCacheAndSeesEdits(t *testing.T) {
	store := memory.NewStore()
	cache := memory.NewQuestionCache(store, time.Hour)
	svc := app.NewSubQuestionService(store, flags.NewRegistry(), app.WithQuestionCache(cache))
	ctx := context.Background()
	c := scenarioChallenge(t, svc)

	if _, err := svc.Read(ctx, c.ID, nil); err != nil {
		t.Fatalf("read: %v", err)
	}
	_, err := svc.Update(ctx, c.ID, domain.UpdateInput{
		UpdateQuestions: true,
		Questions:       []domain.QuestionInput{{Num: 1, Text: "Reworded", Points: intp(100), FlagContent: "flagA"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	view, err := svc.Read(ctx, c.ID, nil)
	if err != nil {
		t.Fatalf("read after update: %v", err)
	}
	if len(view.Questions) != 1 || view.Questions[0].Text != "Reworded" {
		t.Fatalf("stale read after update: %+v", view.Questions)
	}
}

func TestReadUnknownChallenge(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Read(context.Background(), 99, nil); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOperationsRejectForeignChallengeType(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	var id int64
	err := store.WithTx(ctx, func(ctx context.Context, tx app.Tx) error {
		c := domain.Challenge{Name: "plain", Type: "standard"}
		err := tx.CreateChallenge(ctx, &c)
		id = c.ID
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Read(ctx, id, nil); !errors.Is(err, domain.ErrWrongChallengeType) {
		t.Fatalf("read: expected wrong type, got %v", err)
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, domain.ErrWrongChallengeType) {
		t.Fatalf("delete: expected wrong type, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	c := scenarioChallenge(t, svc)
	other := scenarioChallenge(t, svc)
	acct := domain.AccountKey{TeamID: 4, UserID: 1}

	for _, id := range []int64{c.ID, other.ID} {
		for _, sub := range []domain.Submission{{QuestionNum: "1", Provided: "flagA"}, {QuestionNum: "2", Provided: "flagB"}} {
			out, err := svc.Attempt(ctx, id, acct, sub)
			if err != nil {
				t.Fatalf("attempt: %v", err)
			}
			if out.Status == domain.StatusCompleted {
				if err := svc.Solve(ctx, id, acct, sub); err != nil {
					t.Fatalf("solve: %v", err)
				}
			}
		}
	}
	flagIDs := []int64{}
	for _, q := range questions(t, store, c.ID) {
		flagIDs = append(flagIDs, q.FlagID)
	}

	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Read(ctx, c.ID, nil); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected deleted challenge, got %v", err)
	}
	if len(questions(t, store, c.ID)) != 0 {
		t.Fatalf("questions survived delete")
	}
	if len(solvedNums(t, store, c.ID, acct)) != 0 {
		t.Fatalf("partial solves survived delete")
	}
	if len(store.Solves(c.ID)) != 0 {
		t.Fatalf("solves survived delete")
	}
	for _, id := range flagIDs {
		if _, err := flag(t, store, id); !errors.Is(err, domain.ErrFlagNotFound) {
			t.Fatalf("flag %d survived delete: %v", id, err)
		}
	}

	if len(questions(t, store, other.ID)) != 2 || len(solvedNums(t, store, other.ID, acct)) != 2 || len(store.Solves(other.ID)) != 1 {
		t.Fatalf("delete touched another challenge")
	}
}

func TestFailRecordsNothing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	c := scenarioChallenge(t, svc)
	acct := domain.AccountKey{UserID: 3}

	if err := svc.Fail(ctx, c.ID, acct, domain.Submission{QuestionNum: "1", Provided: "nope"}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if len(solvedNums(t, store, c.ID, acct)) != 0 {
		t.Fatalf("fail wrote to the ledger")
	}
}

func TestRegistryAndDispatcher(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	reg := app.NewRegistry()

	if err := app.Register(reg, svc); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := app.Register(reg, svc); !errors.Is(err, domain.ErrDuplicateChallengeType) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}

	d := app.NewDispatcher(reg, store)
	ct, err := d.Lookup(domain.SubQuestionType)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	c, err := ct.Create(ctx, domain.CreateInput{
		Questions: []domain.QuestionInput{{Num: 1, Text: "q", FlagContent: "f"}},
	})
	if err != nil {
		t.Fatalf("create via dispatcher: %v", err)
	}

	resolved, err := d.Resolve(ctx, c.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID() != domain.SubQuestionType {
		t.Fatalf("resolved %q", resolved.ID())
	}
	if _, err := d.Lookup("standard"); !errors.Is(err, domain.ErrUnknownChallengeType) {
		t.Fatalf("expected unknown type, got %v", err)
	}
	if _, err := d.Resolve(ctx, 404); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
