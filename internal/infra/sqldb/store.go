package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

// Store implements app.Store on bun. Every WithTx call is one database transaction.
type Store struct {
	db *bun.DB
}

var _ app.Store = (*Store)(nil)

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txStore{db: tx})
	})
}

func (s *Store) LoadQuestions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	return (&txStore{db: s.db}).ListQuestions(ctx, challengeID)
}

// CreateAccount inserts or renames a host team or user.
func (s *Store) CreateAccount(ctx context.Context, a domain.Account) error {
	var model interface{}
	switch a.Kind {
	case domain.AccountTeam:
		model = &teamRow{ID: a.ID, Name: a.Name}
	case domain.AccountUser:
		model = &userRow{ID: a.ID, Name: a.Name}
	default:
		return fmt.Errorf("unknown account kind %q", a.Kind)
	}
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert %s %d: %w", a.Kind, a.ID, err)
	}
	return nil
}

type txStore struct {
	db bun.IDB
}

func (t *txStore) CreateChallenge(ctx context.Context, c *domain.Challenge) error {
	row := newChallengeRow(*c)
	row.ID = 0
	if _, err := t.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return err
	}
	c.ID = row.ID
	return nil
}

func (t *txStore) GetChallenge(ctx context.Context, id int64) (domain.Challenge, error) {
	var row challengeRow
	err := t.db.NewSelect().Model(&row).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, err
	}
	return row.domain(), nil
}

func (t *txStore) UpdateChallenge(ctx context.Context, c domain.Challenge) error {
	res, err := t.db.NewUpdate().Model(newChallengeRow(c)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrChallengeNotFound)
}

func (t *txStore) DeleteChallenge(ctx context.Context, id int64) error {
	res, err := t.db.NewDelete().Model((*challengeRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrChallengeNotFound)
}

func (t *txStore) CreateFlag(ctx context.Context, f *domain.Flag) error {
	row := &flagRow{ChallengeID: f.ChallengeID, Type: f.Type, Content: f.Content, Data: f.Data}
	if _, err := t.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return err
	}
	f.ID = row.ID
	return nil
}

func (t *txStore) GetFlag(ctx context.Context, id int64) (domain.Flag, error) {
	var row flagRow
	err := t.db.NewSelect().Model(&row).Where("f.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Flag{}, domain.ErrFlagNotFound
	}
	if err != nil {
		return domain.Flag{}, err
	}
	return row.domain(), nil
}

func (t *txStore) UpdateFlagContent(ctx context.Context, id int64, content string) error {
	res, err := t.db.NewUpdate().
		Model((*flagRow)(nil)).
		Set("content = ?", content).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrFlagNotFound)
}

func (t *txStore) DeleteFlag(ctx context.Context, id int64) error {
	res, err := t.db.NewDelete().Model((*flagRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrFlagNotFound)
}

func (t *txStore) DeleteFlags(ctx context.Context, challengeID int64) error {
	_, err := t.db.NewDelete().Model((*flagRow)(nil)).Where("challenge_id = ?", challengeID).Exec(ctx)
	return err
}

func (t *txStore) ListQuestions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	var rows []questionRow
	err := t.db.NewSelect().
		Model(&rows).
		Where("sq.challenge_id = ?", challengeID).
		Order("sq.question_num ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return questionsFromRows(rows), nil
}

func (t *txStore) GetQuestion(ctx context.Context, challengeID int64, num int) (domain.SubQuestion, error) {
	var row questionRow
	err := t.db.NewSelect().
		Model(&row).
		Where("sq.challenge_id = ?", challengeID).
		Where("sq.question_num = ?", num).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SubQuestion{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.SubQuestion{}, err
	}
	return row.domain(), nil
}

func (t *txStore) CreateQuestion(ctx context.Context, q *domain.SubQuestion) error {
	row := newQuestionRow(*q)
	row.ID = 0
	if _, err := t.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return err
	}
	q.ID = row.ID
	return nil
}

func (t *txStore) UpdateQuestion(ctx context.Context, q domain.SubQuestion) error {
	res, err := t.db.NewUpdate().Model(newQuestionRow(q)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrQuestionNotFound)
}

func (t *txStore) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := t.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrQuestionNotFound)
}

func (t *txStore) DeleteQuestions(ctx context.Context, challengeID int64) error {
	_, err := t.db.NewDelete().Model((*questionRow)(nil)).Where("challenge_id = ?", challengeID).Exec(ctx)
	return err
}

func (t *txStore) HasPartialSolve(ctx context.Context, challengeID int64, acct domain.AccountKey, num int) (bool, error) {
	return t.db.NewSelect().
		Model((*partialSolveRow)(nil)).
		Where("ps.challenge_id = ?", challengeID).
		Where("ps.team_id = ?", acct.TeamID).
		Where("ps.user_id = ?", acct.UserID).
		Where("ps.question_num = ?", num).
		Exists(ctx)
}

// InsertPartialSolve relies on the unique ledger key: a concurrent duplicate is skipped
// by ON CONFLICT instead of failing, which would abort the surrounding transaction.
func (t *txStore) InsertPartialSolve(ctx context.Context, ps *domain.PartialSolve) (bool, error) {
	row := &partialSolveRow{
		ChallengeID: ps.ChallengeID,
		TeamID:      ps.Account.TeamID,
		UserID:      ps.Account.UserID,
		QuestionNum: ps.QuestionNum,
		IP:          ps.IP,
		Provided:    ps.Provided,
		Date:        ps.Date.UTC(),
	}
	res, err := t.db.NewInsert().
		Model(row).
		On("CONFLICT DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	err = t.db.NewSelect().
		Model((*partialSolveRow)(nil)).
		Column("id").
		Where("challenge_id = ?", row.ChallengeID).
		Where("team_id = ?", row.TeamID).
		Where("user_id = ?", row.UserID).
		Where("question_num = ?", row.QuestionNum).
		Scan(ctx, &ps.ID)
	return true, err
}

func (t *txStore) SolvedQuestionNums(ctx context.Context, challengeID int64, acct domain.AccountKey) ([]int, error) {
	nums := []int{}
	err := t.db.NewSelect().
		Model((*partialSolveRow)(nil)).
		Column("question_num").
		Where("challenge_id = ?", challengeID).
		Where("team_id = ?", acct.TeamID).
		Where("user_id = ?", acct.UserID).
		Order("question_num ASC").
		Scan(ctx, &nums)
	if err != nil {
		return nil, err
	}
	return nums, nil
}

func (t *txStore) DeletePartialSolvesForQuestion(ctx context.Context, challengeID int64, num int) error {
	_, err := t.db.NewDelete().
		Model((*partialSolveRow)(nil)).
		Where("challenge_id = ?", challengeID).
		Where("question_num = ?", num).
		Exec(ctx)
	return err
}

func (t *txStore) DeletePartialSolves(ctx context.Context, challengeID int64) error {
	_, err := t.db.NewDelete().Model((*partialSolveRow)(nil)).Where("challenge_id = ?", challengeID).Exec(ctx)
	return err
}

func (t *txStore) CreateSolve(ctx context.Context, s *domain.Solve) (bool, error) {
	row := &solveRow{
		ChallengeID: s.ChallengeID,
		TeamID:      s.Account.TeamID,
		UserID:      s.Account.UserID,
		IP:          s.IP,
		Provided:    s.Provided,
		Date:        s.Date.UTC(),
	}
	res, err := t.db.NewInsert().
		Model(row).
		On("CONFLICT DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (t *txStore) DeleteSolves(ctx context.Context, challengeID int64) error {
	_, err := t.db.NewDelete().Model((*solveRow)(nil)).Where("challenge_id = ?", challengeID).Exec(ctx)
	return err
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
