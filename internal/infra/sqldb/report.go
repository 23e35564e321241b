package sqldb

import (
	"context"
	"strings"

	"subquestion-challenge-service/internal/domain"
)

// likeEscaper makes a search term match literally inside a LIKE pattern using '!' as escape.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (s *Store) PartialSolveRecords(ctx context.Context, q domain.ReportQuery) ([]domain.ReportRecord, error) {
	var rows []reportRow
	query := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("ps.*").
		ColumnExpr("COALESCE(c.name, '') AS challenge_name").
		ColumnExpr("COALESCE(sq.question_text, '') AS question_text").
		ColumnExpr("COALESCE(t.name, '') AS team_name").
		ColumnExpr("COALESCE(u.name, '') AS user_name").
		Join("LEFT JOIN challenges AS c ON c.id = ps.challenge_id").
		Join("LEFT JOIN multiquestion_items AS sq ON sq.challenge_id = ps.challenge_id AND sq.question_num = ps.question_num").
		Join("LEFT JOIN teams AS t ON t.id = ps.team_id").
		Join("LEFT JOIN users AS u ON u.id = ps.user_id").
		OrderExpr("ps.date DESC, ps.id DESC")

	if q.ChallengeID != nil {
		query = query.Where("ps.challenge_id = ?", *q.ChallengeID)
	}
	if q.AccountID != nil {
		query = query.Where("(ps.team_id = ? OR ps.user_id = ?)", *q.AccountID, *q.AccountID)
	}
	if q.QuestionNum != nil {
		query = query.Where("ps.question_num = ?", *q.QuestionNum)
	}
	if q.ProvidedContains != "" {
		query = query.Where("LOWER(ps.provided) LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(strings.ToLower(q.ProvidedContains))+"%")
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.ReportRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ReportRecord{
			Solve:         r.partialSolveRow.domain(),
			ChallengeName: r.ChallengeName,
			QuestionText:  r.QuestionText,
			TeamName:      r.TeamName,
			UserName:      r.UserName,
		})
	}
	return out, nil
}
