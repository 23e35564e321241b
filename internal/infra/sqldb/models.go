package sqldb

import (
	"time"

	"github.com/uptrace/bun"

	"subquestion-challenge-service/internal/domain"
)

type challengeRow struct {
	bun.BaseModel `bun:"table:challenges,alias:c"`

	ID             int64  `bun:"id,pk,autoincrement"`
	Name           string `bun:"name"`
	Description    string `bun:"description"`
	ConnectionInfo string `bun:"connection_info"`
	Category       string `bun:"category"`
	State          string `bun:"state"`
	Type           string `bun:"type"`
	MaxAttempts    int    `bun:"max_attempts"`
	NextID         int64  `bun:"next_id"`
	Value          int    `bun:"value"`
}

func newChallengeRow(c domain.Challenge) *challengeRow {
	return &challengeRow{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		ConnectionInfo: c.ConnectionInfo,
		Category:       c.Category,
		State:          c.State,
		Type:           c.Type,
		MaxAttempts:    c.MaxAttempts,
		NextID:         c.NextID,
		Value:          c.Value,
	}
}

func (r challengeRow) domain() domain.Challenge {
	return domain.Challenge{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		ConnectionInfo: r.ConnectionInfo,
		Category:       r.Category,
		State:          r.State,
		Type:           r.Type,
		MaxAttempts:    r.MaxAttempts,
		NextID:         r.NextID,
		Value:          r.Value,
	}
}

type flagRow struct {
	bun.BaseModel `bun:"table:flags,alias:f"`

	ID          int64  `bun:"id,pk,autoincrement"`
	ChallengeID int64  `bun:"challenge_id"`
	Type        string `bun:"type"`
	Content     string `bun:"content"`
	Data        string `bun:"data"`
}

func (r flagRow) domain() domain.Flag {
	return domain.Flag{ID: r.ID, ChallengeID: r.ChallengeID, Type: r.Type, Content: r.Content, Data: r.Data}
}

type questionRow struct {
	bun.BaseModel `bun:"table:multiquestion_items,alias:sq"`

	ID           int64  `bun:"id,pk,autoincrement"`
	ChallengeID  int64  `bun:"challenge_id"`
	QuestionNum  int    `bun:"question_num"`
	QuestionText string `bun:"question_text"`
	Points       int    `bun:"points"`
	FlagID       int64  `bun:"flag_id"`
}

func newQuestionRow(q domain.SubQuestion) *questionRow {
	return &questionRow{
		ID:           q.ID,
		ChallengeID:  q.ChallengeID,
		QuestionNum:  q.Num,
		QuestionText: q.Text,
		Points:       q.Points,
		FlagID:       q.FlagID,
	}
}

func (r questionRow) domain() domain.SubQuestion {
	return domain.SubQuestion{
		ID:          r.ID,
		ChallengeID: r.ChallengeID,
		Num:         r.QuestionNum,
		Text:        r.QuestionText,
		Points:      r.Points,
		FlagID:      r.FlagID,
	}
}

func questionsFromRows(rows []questionRow) []domain.SubQuestion {
	out := make([]domain.SubQuestion, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out
}

type partialSolveRow struct {
	bun.BaseModel `bun:"table:subquestion_partial_solves,alias:ps"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ChallengeID int64     `bun:"challenge_id"`
	TeamID      int64     `bun:"team_id"`
	UserID      int64     `bun:"user_id"`
	QuestionNum int       `bun:"question_num"`
	IP          string    `bun:"ip"`
	Provided    string    `bun:"provided"`
	Date        time.Time `bun:"date"`
}

func (r partialSolveRow) domain() domain.PartialSolve {
	return domain.PartialSolve{
		ID:          r.ID,
		ChallengeID: r.ChallengeID,
		Account:     domain.AccountKey{TeamID: r.TeamID, UserID: r.UserID},
		QuestionNum: r.QuestionNum,
		IP:          r.IP,
		Provided:    r.Provided,
		Date:        r.Date,
	}
}

type solveRow struct {
	bun.BaseModel `bun:"table:solves,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ChallengeID int64     `bun:"challenge_id"`
	TeamID      int64     `bun:"team_id"`
	UserID      int64     `bun:"user_id"`
	IP          string    `bun:"ip"`
	Provided    string    `bun:"provided"`
	Date        time.Time `bun:"date"`
}

type teamRow struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID   int64  `bun:"id,pk"`
	Name string `bun:"name"`
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID   int64  `bun:"id,pk"`
	Name string `bun:"name"`
}

// reportRow is one partial solve joined with challenge, question and account names.
type reportRow struct {
	partialSolveRow `bun:",extend"`

	ChallengeName string `bun:"challenge_name"`
	QuestionText  string `bun:"question_text"`
	TeamName      string `bun:"team_name"`
	UserName      string `bun:"user_name"`
}
