package app

import (
	"context"

	"subquestion-challenge-service/internal/domain"
)

// Store abstracts the transactional persistence of challenges, questions and the ledger
// (in-memory, SQL via bun, etc).
type Store interface {
	// WithTx runs fn in one transaction: committed when fn returns nil, rolled back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	QuestionLoader
	ReportSource
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	CreateChallenge(ctx context.Context, c *domain.Challenge) error
	GetChallenge(ctx context.Context, id int64) (domain.Challenge, error)
	UpdateChallenge(ctx context.Context, c domain.Challenge) error
	DeleteChallenge(ctx context.Context, id int64) error

	CreateFlag(ctx context.Context, f *domain.Flag) error
	GetFlag(ctx context.Context, id int64) (domain.Flag, error)
	UpdateFlagContent(ctx context.Context, id int64, content string) error
	DeleteFlag(ctx context.Context, id int64) error
	DeleteFlags(ctx context.Context, challengeID int64) error

	// ListQuestions returns the challenge's questions ordered by question number.
	ListQuestions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error)
	GetQuestion(ctx context.Context, challengeID int64, num int) (domain.SubQuestion, error)
	CreateQuestion(ctx context.Context, q *domain.SubQuestion) error
	UpdateQuestion(ctx context.Context, q domain.SubQuestion) error
	DeleteQuestion(ctx context.Context, id int64) error
	DeleteQuestions(ctx context.Context, challengeID int64) error

	HasPartialSolve(ctx context.Context, challengeID int64, acct domain.AccountKey, num int) (bool, error)
	// InsertPartialSolve stores ps unless its (challenge, account, question) key already
	// exists, and reports whether a row was written.
	InsertPartialSolve(ctx context.Context, ps *domain.PartialSolve) (bool, error)
	SolvedQuestionNums(ctx context.Context, challengeID int64, acct domain.AccountKey) ([]int, error)
	DeletePartialSolvesForQuestion(ctx context.Context, challengeID int64, num int) error
	DeletePartialSolves(ctx context.Context, challengeID int64) error

	// CreateSolve stores s unless the account already solved the challenge, and reports
	// whether a row was written.
	CreateSolve(ctx context.Context, s *domain.Solve) (bool, error)
	DeleteSolves(ctx context.Context, challengeID int64) error
}

// QuestionLoader fetches a challenge's question set from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error)
}

// ReportSource returns partial solves joined with host metadata, newest first.
type ReportSource interface {
	PartialSolveRecords(ctx context.Context, q domain.ReportQuery) ([]domain.ReportRecord, error)
}

// QuestionCache serves question sets for the read projection.
type QuestionCache interface {
	Questions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error)
	Invalidate(ctx context.Context, challengeID int64)
}

// uncachedQuestions reads straight through to the loader.
type uncachedQuestions struct {
	loader QuestionLoader
}

func (u uncachedQuestions) Questions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	return u.loader.LoadQuestions(ctx, challengeID)
}

func (uncachedQuestions) Invalidate(context.Context, int64) {}
