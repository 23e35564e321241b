package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

// ErrDuplicateQuestion mirrors the unique (challenge_id, question_num) constraint of the SQL schema.
var ErrDuplicateQuestion = errors.New("question number already exists")

// Store is an in-memory implementation of app.Store. Transactions are serialised and run
// against a copy of the state that replaces the live state on commit.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	nextID     int64
	challenges map[int64]domain.Challenge
	flags      map[int64]domain.Flag
	questions  map[int64]domain.SubQuestion
	partials   map[int64]domain.PartialSolve
	solves     map[int64]domain.Solve
	teams      map[int64]string
	users      map[int64]string
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{state: &state{
		challenges: make(map[int64]domain.Challenge),
		flags:      make(map[int64]domain.Flag),
		questions:  make(map[int64]domain.SubQuestion),
		partials:   make(map[int64]domain.PartialSolve),
		solves:     make(map[int64]domain.Solve),
		teams:      make(map[int64]string),
		users:      make(map[int64]string),
	}}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// CreateAccount registers a host team or user so reports can resolve its name.
func (s *Store) CreateAccount(_ context.Context, a domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch a.Kind {
	case domain.AccountTeam:
		s.state.teams[a.ID] = a.Name
	case domain.AccountUser:
		s.state.users[a.ID] = a.Name
	default:
		return fmt.Errorf("unknown account kind %q", a.Kind)
	}
	return nil
}

func (s *Store) LoadQuestions(_ context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.questionsOf(challengeID), nil
}

func (s *Store) PartialSolveRecords(_ context.Context, q domain.ReportQuery) ([]domain.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state

	var out []domain.ReportRecord
	for _, ps := range st.partials {
		if q.ChallengeID != nil && ps.ChallengeID != *q.ChallengeID {
			continue
		}
		if q.AccountID != nil && ps.Account.TeamID != *q.AccountID && ps.Account.UserID != *q.AccountID {
			continue
		}
		if q.QuestionNum != nil && ps.QuestionNum != *q.QuestionNum {
			continue
		}
		if q.ProvidedContains != "" && !strings.Contains(strings.ToLower(ps.Provided), strings.ToLower(q.ProvidedContains)) {
			continue
		}
		rec := domain.ReportRecord{
			Solve:    ps,
			TeamName: st.teams[ps.Account.TeamID],
			UserName: st.users[ps.Account.UserID],
		}
		if c, ok := st.challenges[ps.ChallengeID]; ok {
			rec.ChallengeName = c.Name
		}
		if sq, ok := st.findQuestion(ps.ChallengeID, ps.QuestionNum); ok {
			rec.QuestionText = sq.Text
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Solve, out[j].Solve
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (st *state) clone() *state {
	return &state{
		nextID:     st.nextID,
		challenges: cloneMap(st.challenges),
		flags:      cloneMap(st.flags),
		questions:  cloneMap(st.questions),
		partials:   cloneMap(st.partials),
		solves:     cloneMap(st.solves),
		teams:      cloneMap(st.teams),
		users:      cloneMap(st.users),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

func (st *state) questionsOf(challengeID int64) []domain.SubQuestion {
	out := []domain.SubQuestion{}
	for _, q := range st.questions {
		if q.ChallengeID == challengeID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

func (st *state) findQuestion(challengeID int64, num int) (domain.SubQuestion, bool) {
	for _, q := range st.questions {
		if q.ChallengeID == challengeID && q.Num == num {
			return q, true
		}
	}
	return domain.SubQuestion{}, false
}

type tx struct {
	st *state
}

func (t *tx) CreateChallenge(_ context.Context, c *domain.Challenge) error {
	c.ID = t.st.id()
	t.st.challenges[c.ID] = *c
	return nil
}

func (t *tx) GetChallenge(_ context.Context, id int64) (domain.Challenge, error) {
	c, ok := t.st.challenges[id]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return c, nil
}

func (t *tx) UpdateChallenge(_ context.Context, c domain.Challenge) error {
	if _, ok := t.st.challenges[c.ID]; !ok {
		return domain.ErrChallengeNotFound
	}
	t.st.challenges[c.ID] = c
	return nil
}

func (t *tx) DeleteChallenge(_ context.Context, id int64) error {
	if _, ok := t.st.challenges[id]; !ok {
		return domain.ErrChallengeNotFound
	}
	delete(t.st.challenges, id)
	return nil
}

func (t *tx) CreateFlag(_ context.Context, f *domain.Flag) error {
	f.ID = t.st.id()
	t.st.flags[f.ID] = *f
	return nil
}

func (t *tx) GetFlag(_ context.Context, id int64) (domain.Flag, error) {
	f, ok := t.st.flags[id]
	if !ok {
		return domain.Flag{}, domain.ErrFlagNotFound
	}
	return f, nil
}

func (t *tx) UpdateFlagContent(_ context.Context, id int64, content string) error {
	f, ok := t.st.flags[id]
	if !ok {
		return domain.ErrFlagNotFound
	}
	f.Content = content
	t.st.flags[id] = f
	return nil
}

func (t *tx) DeleteFlag(_ context.Context, id int64) error {
	if _, ok := t.st.flags[id]; !ok {
		return domain.ErrFlagNotFound
	}
	delete(t.st.flags, id)
	return nil
}

func (t *tx) DeleteFlags(_ context.Context, challengeID int64) error {
	for id, f := range t.st.flags {
		if f.ChallengeID == challengeID {
			delete(t.st.flags, id)
		}
	}
	return nil
}

func (t *tx) ListQuestions(_ context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	return t.st.questionsOf(challengeID), nil
}

func (t *tx) GetQuestion(_ context.Context, challengeID int64, num int) (domain.SubQuestion, error) {
	q, ok := t.st.findQuestion(challengeID, num)
	if !ok {
		return domain.SubQuestion{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (t *tx) CreateQuestion(_ context.Context, q *domain.SubQuestion) error {
	if _, ok := t.st.findQuestion(q.ChallengeID, q.Num); ok {
		return fmt.Errorf("%w: challenge %d question %d", ErrDuplicateQuestion, q.ChallengeID, q.Num)
	}
	q.ID = t.st.id()
	t.st.questions[q.ID] = *q
	return nil
}

func (t *tx) UpdateQuestion(_ context.Context, q domain.SubQuestion) error {
	if _, ok := t.st.questions[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	t.st.questions[q.ID] = q
	return nil
}

func (t *tx) DeleteQuestion(_ context.Context, id int64) error {
	if _, ok := t.st.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(t.st.questions, id)
	return nil
}

func (t *tx) DeleteQuestions(_ context.Context, challengeID int64) error {
	for id, q := range t.st.questions {
		if q.ChallengeID == challengeID {
			delete(t.st.questions, id)
		}
	}
	return nil
}

func (t *tx) HasPartialSolve(_ context.Context, challengeID int64, acct domain.AccountKey, num int) (bool, error) {
	_, ok := t.findPartial(challengeID, acct, num)
	return ok, nil
}

func (t *tx) InsertPartialSolve(_ context.Context, ps *domain.PartialSolve) (bool, error) {
	if _, ok := t.findPartial(ps.ChallengeID, ps.Account, ps.QuestionNum); ok {
		return false, nil
	}
	ps.ID = t.st.id()
	t.st.partials[ps.ID] = *ps
	return true, nil
}

func (t *tx) findPartial(challengeID int64, acct domain.AccountKey, num int) (domain.PartialSolve, bool) {
	for _, ps := range t.st.partials {
		if ps.ChallengeID == challengeID && ps.Account == acct && ps.QuestionNum == num {
			return ps, true
		}
	}
	return domain.PartialSolve{}, false
}

func (t *tx) SolvedQuestionNums(_ context.Context, challengeID int64, acct domain.AccountKey) ([]int, error) {
	nums := []int{}
	for _, ps := range t.st.partials {
		if ps.ChallengeID == challengeID && ps.Account == acct {
			nums = append(nums, ps.QuestionNum)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

func (t *tx) DeletePartialSolvesForQuestion(_ context.Context, challengeID int64, num int) error {
	for id, ps := range t.st.partials {
		if ps.ChallengeID == challengeID && ps.QuestionNum == num {
			delete(t.st.partials, id)
		}
	}
	return nil
}

func (t *tx) DeletePartialSolves(_ context.Context, challengeID int64) error {
	for id, ps := range t.st.partials {
		if ps.ChallengeID == challengeID {
			delete(t.st.partials, id)
		}
	}
	return nil
}

func (t *tx) CreateSolve(_ context.Context, s *domain.Solve) (bool, error) {
	for _, existing := range t.st.solves {
		if existing.ChallengeID == s.ChallengeID && existing.Account == s.Account {
			return false, nil
		}
	}
	s.ID = t.st.id()
	t.st.solves[s.ID] = *s
	return true, nil
}

func (t *tx) DeleteSolves(_ context.Context, challengeID int64) error {
	for id, s := range t.st.solves {
		if s.ChallengeID == challengeID {
			delete(t.st.solves, id)
		}
	}
	return nil
}

// Solves lists the recorded host solves of a challenge.
func (s *Store) Solves(challengeID int64) []domain.Solve {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Solve
	for _, sv := range s.state.solves {
		if sv.ChallengeID == challengeID {
			out = append(out, sv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
