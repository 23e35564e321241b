package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"subquestion-challenge-service/internal/domain"
	"subquestion-challenge-service/internal/metrics"
)

// FlagComparator decides whether a submission matches a flag (host capability).
type FlagComparator interface {
	Compare(flag domain.Flag, provided string) (bool, error)
}

// SubQuestionService implements the multi-part question challenge type.
type SubQuestionService struct {
	store   Store
	flags   FlagComparator
	cache   QuestionCache
	events  ProgressPublisher
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a SubQuestionService.
type Option func(*SubQuestionService)

func WithQuestionCache(c QuestionCache) Option {
	return func(s *SubQuestionService) { s.cache = c }
}

// WithProgressPublisher routes progress events to a hub or a cross-instance relay.
func WithProgressPublisher(p ProgressPublisher) Option {
	return func(s *SubQuestionService) { s.events = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *SubQuestionService) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SubQuestionService) { s.metrics = m }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SubQuestionService) { s.now = now }
}

func NewSubQuestionService(store Store, flags FlagComparator, opts ...Option) *SubQuestionService {
	s := &SubQuestionService{
		store: store,
		flags: flags,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = uncachedQuestions{loader: store}
	}
	if s.events == nil {
		s.events = (*ProgressHub)(nil)
	}
	return s
}

// Register installs the service into the platform's challenge type registry.
func Register(reg *Registry, s *SubQuestionService) error {
	return reg.Register(s)
}

func (s *SubQuestionService) ID() string   { return domain.SubQuestionType }
func (s *SubQuestionService) Name() string { return domain.SubQuestionTypeName }

// Create persists a new challenge and one flag plus one question per complete entry.
// Incomplete entries are dropped; the challenge value is the sum of accepted points.
func (s *SubQuestionService) Create(ctx context.Context, in domain.CreateInput) (domain.Challenge, error) {
	if err := validateQuestions(in.Questions); err != nil {
		return domain.Challenge{}, err
	}
	accepted := make([]domain.QuestionInput, 0, len(in.Questions))
	for _, q := range desiredByNum(in.Questions) {
		if q.Complete() {
			accepted = append(accepted, q)
		}
	}

	c := domain.Challenge{Type: domain.SubQuestionType}
	in.Fields.Apply(&c)
	if c.State == "" {
		c.State = domain.StateHidden
	}
	for _, q := range accepted {
		c.Value += q.PointsOrDefault()
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateChallenge(ctx, &c); err != nil {
			return fmt.Errorf("create challenge: %w", err)
		}
		for _, q := range accepted {
			if _, err := createQuestion(ctx, tx, c.ID, q, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}

	s.metrics.Reconciled("create", len(accepted))
	s.cache.Invalidate(ctx, c.ID)
	s.log.Info("challenge created",
		zap.Int64("challenge_id", c.ID),
		zap.Int("questions", len(accepted)),
		zap.Int("value", c.Value))
	return c, nil
}

// Read projects the challenge with per-question solved markers for acct.
func (s *SubQuestionService) Read(ctx context.Context, challengeID int64, acct *domain.AccountKey) (domain.ChallengeView, error) {
	var (
		c      domain.Challenge
		solved = map[int]bool{}
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		c, err = s.getOwnChallenge(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		if acct == nil {
			return nil
		}
		nums, err := tx.SolvedQuestionNums(ctx, challengeID, *acct)
		if err != nil {
			return err
		}
		for _, n := range nums {
			solved[n] = true
		}
		return nil
	})
	if err != nil {
		return domain.ChallengeView{}, err
	}

	questions, err := s.cache.Questions(ctx, challengeID)
	if err != nil {
		return domain.ChallengeView{}, fmt.Errorf("load questions: %w", err)
	}
	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, domain.QuestionView{
			Num:    q.Num,
			Text:   q.Text,
			Points: q.Points,
			FlagID: q.FlagID,
			Solved: solved[q.Num],
		})
	}
	return domain.ChallengeView{
		Challenge: c,
		Questions: views,
		TypeData:  domain.TypeData{ID: s.ID(), Name: s.Name()},
	}, nil
}

// Delete removes the challenge and everything hanging off it in one transaction.
func (s *SubQuestionService) Delete(ctx context.Context, challengeID int64) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := s.getOwnChallenge(ctx, tx, challengeID); err != nil {
			return err
		}
		if err := tx.DeleteQuestions(ctx, challengeID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		if err := tx.DeletePartialSolves(ctx, challengeID); err != nil {
			return fmt.Errorf("delete partial solves: %w", err)
		}
		if err := tx.DeleteFlags(ctx, challengeID); err != nil {
			return fmt.Errorf("delete flags: %w", err)
		}
		if err := tx.DeleteChallenge(ctx, challengeID); err != nil {
			return fmt.Errorf("delete challenge: %w", err)
		}
		if err := tx.DeleteSolves(ctx, challengeID); err != nil {
			return fmt.Errorf("delete solves: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, challengeID)
	s.log.Info("challenge deleted", zap.Int64("challenge_id", challengeID))
	return nil
}

// Fail records nothing: wrong sub-answers leave no trace in the ledger.
func (s *SubQuestionService) Fail(_ context.Context, challengeID int64, acct domain.AccountKey, sub domain.Submission) error {
	s.log.Debug("incorrect submission",
		zap.Int64("challenge_id", challengeID),
		zap.Int64("team_id", acct.TeamID),
		zap.Int64("user_id", acct.UserID),
		zap.String("question_num", sub.QuestionNum))
	return nil
}

func (s *SubQuestionService) getOwnChallenge(ctx context.Context, tx Tx, challengeID int64) (domain.Challenge, error) {
	c, err := tx.GetChallenge(ctx, challengeID)
	if err != nil {
		return domain.Challenge{}, err
	}
	if c.Type != domain.SubQuestionType {
		return domain.Challenge{}, fmt.Errorf("%w: it is %q", domain.ErrWrongChallengeType, c.Type)
	}
	return c, nil
}

// createQuestion creates the owned flag and then the question bound to it. A non-zero
// flagID adopts that existing flag instead of creating one.
func createQuestion(ctx context.Context, tx Tx, challengeID int64, in domain.QuestionInput, flagID int64) (domain.SubQuestion, error) {
	if flagID == 0 {
		flag := domain.Flag{
			ChallengeID: challengeID,
			Type:        domain.FlagTypeStatic,
			Content:     in.FlagContent,
		}
		if err := tx.CreateFlag(ctx, &flag); err != nil {
			return domain.SubQuestion{}, fmt.Errorf("create flag for question %d: %w", in.Num, err)
		}
		flagID = flag.ID
	}
	q := domain.SubQuestion{
		ChallengeID: challengeID,
		Num:         in.Num,
		Text:        in.Text,
		Points:      in.PointsOrDefault(),
		FlagID:      flagID,
	}
	if err := tx.CreateQuestion(ctx, &q); err != nil {
		return domain.SubQuestion{}, fmt.Errorf("create question %d: %w", in.Num, err)
	}
	return q, nil
}

func validateQuestions(qs []domain.QuestionInput) error {
	for _, q := range qs {
		if q.Points != nil && *q.Points < 0 {
			return fmt.Errorf("%w: question %d", domain.ErrNegativePoints, q.Num)
		}
	}
	return nil
}

// desiredByNum collapses duplicate question numbers (the last entry wins) and orders by number.
func desiredByNum(qs []domain.QuestionInput) []domain.QuestionInput {
	byNum := make(map[int]domain.QuestionInput, len(qs))
	for _, q := range qs {
		byNum[q.Num] = q
	}
	out := make([]domain.QuestionInput, 0, len(byNum))
	for _, q := range byNum {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

func sumPoints(qs []domain.SubQuestion) int {
	total := 0
	for _, q := range qs {
		total += q.Points
	}
	return total
}
