package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations holds every schema change, in file-name order.
var Migrations = migrate.NewMigrations()

// Table snapshots as of this migration. Later migrations must not edit them.

type challenge struct {
	bun.BaseModel `bun:"table:challenges"`

	ID             int64  `bun:"id,pk,autoincrement"`
	Name           string `bun:"name,notnull"`
	Description    string `bun:"description,notnull"`
	ConnectionInfo string `bun:"connection_info,notnull"`
	Category       string `bun:"category,notnull"`
	State          string `bun:"state,notnull"`
	Type           string `bun:"type,notnull"`
	MaxAttempts    int    `bun:"max_attempts,notnull"`
	NextID         int64  `bun:"next_id,notnull"`
	Value          int    `bun:"value,notnull"`
}

type flag struct {
	bun.BaseModel `bun:"table:flags"`

	ID          int64  `bun:"id,pk,autoincrement"`
	ChallengeID int64  `bun:"challenge_id,notnull"`
	Type        string `bun:"type,notnull"`
	Content     string `bun:"content,notnull"`
	Data        string `bun:"data,notnull"`
}

type team struct {
	bun.BaseModel `bun:"table:teams"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type solve struct {
	bun.BaseModel `bun:"table:solves"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ChallengeID int64     `bun:"challenge_id,notnull,unique:solves_account_key"`
	TeamID      int64     `bun:"team_id,notnull,unique:solves_account_key"`
	UserID      int64     `bun:"user_id,notnull,unique:solves_account_key"`
	IP          string    `bun:"ip,notnull"`
	Provided    string    `bun:"provided,notnull"`
	Date        time.Time `bun:"date,notnull"`
}

type questionItem struct {
	bun.BaseModel `bun:"table:multiquestion_items"`

	ID           int64  `bun:"id,pk,autoincrement"`
	ChallengeID  int64  `bun:"challenge_id,notnull,unique:multiquestion_items_num_key"`
	QuestionNum  int    `bun:"question_num,notnull,unique:multiquestion_items_num_key"`
	QuestionText string `bun:"question_text,notnull"`
	Points       int    `bun:"points,notnull"`
	FlagID       int64  `bun:"flag_id,notnull"`
}

type partialSolve struct {
	bun.BaseModel `bun:"table:subquestion_partial_solves"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ChallengeID int64     `bun:"challenge_id,notnull,unique:subquestion_partial_solves_key"`
	TeamID      int64     `bun:"team_id,notnull,unique:subquestion_partial_solves_key"`
	UserID      int64     `bun:"user_id,notnull,unique:subquestion_partial_solves_key"`
	QuestionNum int       `bun:"question_num,notnull,unique:subquestion_partial_solves_key"`
	IP          string    `bun:"ip,type:varchar(46),notnull"`
	Provided    string    `bun:"provided,notnull"`
	Date        time.Time `bun:"date,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				models := []interface{}{
					(*challenge)(nil),
					(*flag)(nil),
					(*team)(nil),
					(*user)(nil),
					(*solve)(nil),
					(*questionItem)(nil),
					(*partialSolve)(nil),
				}
				for _, m := range models {
					if _, err := tx.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
						return fmt.Errorf("create table for %T: %w", m, err)
					}
				}
				indexes := []struct {
					model  interface{}
					name   string
					column string
				}{
					{(*flag)(nil), "flags_challenge_id_idx", "challenge_id"},
					{(*partialSolve)(nil), "subquestion_partial_solves_date_idx", "date"},
					{(*solve)(nil), "solves_challenge_id_idx", "challenge_id"},
				}
				for _, idx := range indexes {
					_, err := tx.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.column).IfNotExists().Exec(ctx)
					if err != nil {
						return fmt.Errorf("create index %s: %w", idx.name, err)
					}
				}
				return nil
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			models := []interface{}{
				(*partialSolve)(nil),
				(*questionItem)(nil),
				(*solve)(nil),
				(*user)(nil),
				(*team)(nil),
				(*flag)(nil),
				(*challenge)(nil),
			}
			for _, m := range models {
				if _, err := db.NewDropTable().Model(m).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
