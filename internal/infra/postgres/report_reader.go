package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

// Reader serves the read-only queries (admin report, question sets for the cache) straight
// from a pgx pool, outside the transactional store.
type Reader struct {
	pool *pgxpool.Pool
}

var (
	_ app.ReportSource   = (*Reader)(nil)
	_ app.QuestionLoader = (*Reader)(nil)
)

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// Connect opens a pgx pool for url.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

func (r *Reader) LoadQuestions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, challenge_id, question_num, question_text, points, flag_id
		FROM multiquestion_items
		WHERE challenge_id = $1
		ORDER BY question_num`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	out := []domain.SubQuestion{}
	for rows.Next() {
		var q domain.SubQuestion
		if err := rows.Scan(&q.ID, &q.ChallengeID, &q.Num, &q.Text, &q.Points, &q.FlagID); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *Reader) PartialSolveRecords(ctx context.Context, q domain.ReportQuery) ([]domain.ReportRecord, error) {
	sql, args := reportSQL(q)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query partial solves: %w", err)
	}
	defer rows.Close()

	out := []domain.ReportRecord{}
	for rows.Next() {
		var rec domain.ReportRecord
		ps := &rec.Solve
		err := rows.Scan(
			&ps.ID, &ps.ChallengeID, &ps.Account.TeamID, &ps.Account.UserID, &ps.QuestionNum,
			&ps.IP, &ps.Provided, &ps.Date,
			&rec.ChallengeName, &rec.QuestionText, &rec.TeamName, &rec.UserName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan partial solve: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const reportSelect = `
	SELECT ps.id, ps.challenge_id, ps.team_id, ps.user_id, ps.question_num, ps.ip, ps.provided, ps.date,
		COALESCE(c.name, ''), COALESCE(sq.question_text, ''), COALESCE(t.name, ''), COALESCE(u.name, '')
	FROM subquestion_partial_solves ps
	LEFT JOIN challenges c ON c.id = ps.challenge_id
	LEFT JOIN multiquestion_items sq ON sq.challenge_id = ps.challenge_id AND sq.question_num = ps.question_num
	LEFT JOIN teams t ON t.id = ps.team_id
	LEFT JOIN users u ON u.id = ps.user_id`

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// reportSQL renders the report query with positional parameters for the set filters.
func reportSQL(q domain.ReportQuery) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.ChallengeID != nil {
		where = append(where, "ps.challenge_id = "+arg(*q.ChallengeID))
	}
	if q.AccountID != nil {
		p := arg(*q.AccountID)
		where = append(where, "(ps.team_id = "+p+" OR ps.user_id = "+p+")")
	}
	if q.QuestionNum != nil {
		where = append(where, "ps.question_num = "+arg(*q.QuestionNum))
	}
	if q.ProvidedContains != "" {
		where = append(where, "ps.provided ILIKE "+arg("%"+likeEscaper.Replace(q.ProvidedContains)+"%")+" ESCAPE '!'")
	}

	var b strings.Builder
	b.WriteString(reportSelect)
	if len(where) > 0 {
		b.WriteString("\n\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\n\tORDER BY ps.date DESC, ps.id DESC")
	return b.String(), args
}
