package app_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

func TestProgressHubDeliversEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := app.NewProgressHub()
	svc, _ := newTestService(t, app.WithProgressPublisher(hub))
	ctx := context.Background()
	c := scenarioChallenge(t, svc)
	acct := domain.AccountKey{UserID: 1}

	events, cancel := hub.Subscribe(c.ID)
	defer cancel()

	sub := domain.Submission{QuestionNum: "1", Provided: "flagA"}
	_, _ = svc.Attempt(ctx, c.ID, acct, sub)
	// repeat and wrong answers publish nothing
	_, _ = svc.Attempt(ctx, c.ID, acct, sub)
	_, _ = svc.Attempt(ctx, c.ID, acct, domain.Submission{QuestionNum: "2", Provided: "nope"})
	last := domain.Submission{QuestionNum: "2", Provided: "flagB"}
	_, _ = svc.Attempt(ctx, c.ID, acct, last)
	if err := svc.Solve(ctx, c.ID, acct, last); err != nil {
		t.Fatalf("solve: %v", err)
	}

	want := []domain.ProgressEvent{
		{ChallengeID: c.ID, Account: acct, QuestionNum: 1, Solved: 1, Total: 2},
		{ChallengeID: c.ID, Account: acct, QuestionNum: 2, Solved: 2, Total: 2},
		{ChallengeID: c.ID, Account: acct, Solved: 2, Total: 2, Completed: true},
	}
	for i, w := range want {
		select {
		case ev := <-events:
			ev.At = time.Time{}
			if ev != w {
				t.Fatalf("event %d = %+v, want %+v", i, ev, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestProgressHubDropsOldestForSlowSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := app.NewProgressHub()
	events, cancel := hub.Subscribe(1)
	defer cancel()

	for i := 1; i <= 20; i++ {
		hub.Publish(domain.ProgressEvent{ChallengeID: 1, QuestionNum: i})
	}
	first := <-events
	if first.QuestionNum != 13 {
		t.Fatalf("expected the oldest retained event to be 13, got %d", first.QuestionNum)
	}
}

func TestProgressHubCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := app.NewProgressHub()
	events, cancel := hub.Subscribe(5)
	other, cancelOther := hub.Subscribe(6)
	defer cancelOther()
	if hub.Subscribers(5) != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	if hub.Subscribers(5) != 0 {
		t.Fatalf("expected subscriber removed")
	}

	hub.Publish(domain.ProgressEvent{ChallengeID: 5})
	select {
	case ev := <-other:
		t.Fatalf("event leaked to another challenge: %+v", ev)
	default:
	}

	var nilHub *app.ProgressHub
	nilHub.Publish(domain.ProgressEvent{ChallengeID: 5})
}
