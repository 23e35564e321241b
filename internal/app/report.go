package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"subquestion-challenge-service/internal/domain"
)

// Report filter fields accepted by the admin partial-solve view.
const (
	FieldChallengeID   = "challenge_id"
	FieldChallengeName = "challenge_name"
	FieldAccountID     = "account_id"
	FieldAccountName   = "account_name"
	FieldQuestionNum   = "question_num"
	FieldProvided      = "provided"
)

// Reporter answers the read-only admin query over the partial-solve ledger.
type Reporter struct {
	store  Store
	source ReportSource
	log    *zap.Logger
}

// NewReporter reads challenge metadata from store and ledger rows from source, which may be
// a dedicated read path such as a replica.
func NewReporter(store Store, source ReportSource, log *zap.Logger) *Reporter {
	if source == nil {
		source = store
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{store: store, source: source, log: log}
}

// Report lists partial solves for the challenge, or across challenges when a filter says so.
// Malformed filters yield an empty report, never an error.
func (r *Reporter) Report(ctx context.Context, challengeID int64, f domain.ReportFilter) (domain.Report, error) {
	var c domain.Challenge
	err := r.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		c, err = tx.GetChallenge(ctx, challengeID)
		return err
	})
	if err != nil {
		return domain.Report{}, err
	}
	if c.Type != domain.SubQuestionType {
		return domain.Report{}, fmt.Errorf("%w, it is: %s", domain.ErrWrongChallengeType, c.Type)
	}

	field := strings.TrimSpace(f.Field)
	q := strings.TrimSpace(f.Query)
	rep := domain.Report{
		ChallengeID:   c.ID,
		ChallengeName: c.Name,
		Field:         field,
		Query:         q,
		Rows:          []domain.ReportRow{},
	}

	query, ok := buildReportQuery(challengeID, field, q)
	if !ok {
		return rep, nil
	}
	records, err := r.source.PartialSolveRecords(ctx, query)
	if err != nil {
		return domain.Report{}, fmt.Errorf("query partial solves: %w", err)
	}

	needle := strings.ToLower(q)
	for _, rec := range records {
		row := reportRow(rec)
		switch field {
		case FieldChallengeName:
			if !strings.Contains(strings.ToLower(row.ChallengeName), needle) {
				continue
			}
		case FieldAccountName:
			if !strings.Contains(strings.ToLower(row.AccountName), needle) {
				continue
			}
		}
		rep.Rows = append(rep.Rows, row)
	}
	r.log.Debug("partial solve report",
		zap.Int64("challenge_id", challengeID),
		zap.String("field", field),
		zap.Int("rows", len(rep.Rows)))
	return rep, nil
}

// buildReportQuery maps the field/q pair onto storage filters. ok is false when the
// filter can match nothing (unknown field or a non-numeric value for a numeric field).
func buildReportQuery(challengeID int64, field, q string) (domain.ReportQuery, bool) {
	if field == "" || q == "" {
		return domain.ReportQuery{ChallengeID: &challengeID}, true
	}
	switch field {
	case FieldChallengeID:
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			return domain.ReportQuery{}, false
		}
		return domain.ReportQuery{ChallengeID: &id}, true
	case FieldAccountID:
		// team_id 0 marks individual play, not an account
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil || id <= 0 {
			return domain.ReportQuery{}, false
		}
		return domain.ReportQuery{AccountID: &id}, true
	case FieldQuestionNum:
		num, err := strconv.Atoi(q)
		if err != nil {
			return domain.ReportQuery{}, false
		}
		return domain.ReportQuery{QuestionNum: &num}, true
	case FieldProvided:
		return domain.ReportQuery{ProvidedContains: q}, true
	case FieldChallengeName, FieldAccountName:
		// filtered after the join
		return domain.ReportQuery{}, true
	default:
		return domain.ReportQuery{}, false
	}
}

func reportRow(rec domain.ReportRecord) domain.ReportRow {
	ps := rec.Solve
	row := domain.ReportRow{
		AccountName:   "Unknown",
		AccountURL:    "#",
		QuestionNum:   ps.QuestionNum,
		QuestionText:  rec.QuestionText,
		Provided:      ps.Provided,
		Date:          ps.Date,
		IP:            ps.IP,
		ChallengeID:   ps.ChallengeID,
		ChallengeName: rec.ChallengeName,
	}
	switch {
	case ps.Account.TeamID != 0:
		if rec.TeamName != "" {
			row.AccountName = rec.TeamName
			row.AccountURL = fmt.Sprintf("/admin/teams/%d", ps.Account.TeamID)
		}
	case ps.Account.UserID != 0:
		if rec.UserName != "" {
			row.AccountName = rec.UserName
			row.AccountURL = fmt.Sprintf("/admin/users/%d", ps.Account.UserID)
		}
	}
	if row.QuestionText == "" {
		row.QuestionText = fmt.Sprintf("Question %d", ps.QuestionNum)
	}
	if row.ChallengeName == "" {
		row.ChallengeName = fmt.Sprintf("Challenge %d", ps.ChallengeID)
	}
	return row
}
