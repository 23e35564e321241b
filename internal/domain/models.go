package domain

import (
	"encoding/json"
	"time"
)

const (
	// SubQuestionType is the type tag under which multi-part challenges are registered.
	SubQuestionType = "subquestionchallenge"
	// SubQuestionTypeName is the human readable name of SubQuestionType.
	SubQuestionTypeName = "Sub Question Challenge"

	// StateHidden is applied to new challenges that do not specify a state.
	StateHidden = "hidden"
	// StateVisible marks a published challenge.
	StateVisible = "visible"

	// FlagTypeStatic is the flag type created for every sub-question.
	FlagTypeStatic = "static"
	// FlagTypeRegex matches the submission against a regular expression.
	FlagTypeRegex = "regex"
	// FlagDataCaseInsensitive makes a flag comparison ignore case.
	FlagDataCaseInsensitive = "case_insensitive"

	// DefaultQuestionPoints is used when a question entry omits its points.
	DefaultQuestionPoints = 100
)

// Challenge is the host challenge row. Value is derived from the question set.
type Challenge struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ConnectionInfo string `json:"connection_info"`
	Category       string `json:"category"`
	State          string `json:"state"`
	Type           string `json:"type"`
	MaxAttempts    int    `json:"max_attempts"`
	NextID         int64  `json:"next_id,omitempty"`
	Value          int    `json:"value"`
}

// ChallengeFields carries the scalar challenge fields of a create or update request.
// A nil field was not provided by the caller.
type ChallengeFields struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	ConnectionInfo *string `json:"connection_info,omitempty"`
	Category       *string `json:"category,omitempty"`
	State          *string `json:"state,omitempty"`
	MaxAttempts    *int    `json:"max_attempts,omitempty"`
	NextID         *int64  `json:"next_id,omitempty"`
}

// Apply copies every provided field onto c.
func (f ChallengeFields) Apply(c *Challenge) {
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.Description != nil {
		c.Description = *f.Description
	}
	if f.ConnectionInfo != nil {
		c.ConnectionInfo = *f.ConnectionInfo
	}
	if f.Category != nil {
		c.Category = *f.Category
	}
	if f.State != nil {
		c.State = *f.State
	}
	if f.MaxAttempts != nil {
		c.MaxAttempts = *f.MaxAttempts
	}
	if f.NextID != nil {
		c.NextID = *f.NextID
	}
}

// Flag is an accepted-answer record. Data holds comparator options such as case_insensitive.
type Flag struct {
	ID          int64
	ChallengeID int64
	Type        string
	Content     string
	Data        string
}

// SubQuestion is one scored part of a multi-part challenge. It exclusively owns FlagID.
type SubQuestion struct {
	ID          int64  `json:"id"`
	ChallengeID int64  `json:"challenge_id"`
	Num         int    `json:"question_num"`
	Text        string `json:"text"`
	Points      int    `json:"points"`
	FlagID      int64  `json:"flag_id"`
}

// AccountKey identifies the solving account. TeamID is zero for individual play.
type AccountKey struct {
	TeamID int64 `json:"team_id"`
	UserID int64 `json:"user_id"`
}

// PartialSolve is one account's first correct answer to one sub-question.
type PartialSolve struct {
	ID          int64
	ChallengeID int64
	Account     AccountKey
	QuestionNum int
	IP          string
	Provided    string
	Date        time.Time
}

// Solve is the host's terminal solve record for a challenge.
type Solve struct {
	ID          int64
	ChallengeID int64
	Account     AccountKey
	IP          string
	Provided    string
	Date        time.Time
}

// AccountKind distinguishes teams from users.
type AccountKind string

const (
	AccountTeam AccountKind = "team"
	AccountUser AccountKind = "user"
)

// Account is a named host account (team or user).
type Account struct {
	ID   int64
	Kind AccountKind
	Name string
}

// QuestionInput is one desired question of a create or question-set update.
// An entry without Text or FlagContent is incomplete and never creates or updates a question.
type QuestionInput struct {
	Num         int    `json:"num"`
	Text        string `json:"text"`
	Points      *int   `json:"points,omitempty"`
	FlagContent string `json:"flag"`
	FlagID      *int64 `json:"flag_id,omitempty"`
}

// Complete reports whether the entry carries both a prompt and an answer.
func (q QuestionInput) Complete() bool {
	return q.Text != "" && q.FlagContent != ""
}

// PointsOrDefault returns the entry's points, defaulting to DefaultQuestionPoints.
func (q QuestionInput) PointsOrDefault() int {
	if q.Points == nil {
		return DefaultQuestionPoints
	}
	return *q.Points
}

// CreateInput is the structured form of a challenge creation request.
type CreateInput struct {
	Fields    ChallengeFields
	Questions []QuestionInput
}

// UpdateInput is the structured form of an update request. Questions are only
// considered when UpdateQuestions is set, and then describe the complete desired set.
type UpdateInput struct {
	UpdateQuestions bool
	Fields          ChallengeFields
	Questions       []QuestionInput
}

// Submission is an answer addressed to one question. QuestionNum is kept raw so that
// missing and malformed numbers can be told apart.
type Submission struct {
	QuestionNum string
	Provided    string
	IP          string
}

// Status is the ternary result of an attempt.
type Status int

const (
	StatusIncorrect Status = iota
	StatusPartial
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusPartial:
		return "partial"
	default:
		return "incorrect"
	}
}

// MarshalJSON encodes the status as true, "partial" or false.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusCompleted:
		return []byte("true"), nil
	case StatusPartial:
		return []byte(`"partial"`), nil
	default:
		return []byte("false"), nil
	}
}

// UnmarshalJSON accepts the encodings produced by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		if v {
			*s = StatusCompleted
		} else {
			*s = StatusIncorrect
		}
	case string:
		if v == "partial" {
			*s = StatusPartial
		} else {
			*s = StatusIncorrect
		}
	default:
		*s = StatusIncorrect
	}
	return nil
}

// Outcome is returned by an attempt. Solved and Total are set once the answer matched.
type Outcome struct {
	Status      Status `json:"status"`
	Message     string `json:"message"`
	QuestionNum int    `json:"question_num,omitempty"`
	Solved      int    `json:"solved,omitempty"`
	Total       int    `json:"total,omitempty"`
}

// QuestionView is the participant-facing projection of a SubQuestion.
type QuestionView struct {
	Num    int    `json:"num"`
	Text   string `json:"text"`
	Points int    `json:"points"`
	FlagID int64  `json:"flag_id"`
	Solved bool   `json:"solved"`
}

// TypeData describes the challenge type to the front end.
type TypeData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChallengeView is the read projection of a challenge for the current caller.
type ChallengeView struct {
	Challenge
	Questions []QuestionView `json:"questions"`
	TypeData  TypeData       `json:"type_data"`
}

// ReportFilter is the raw field/q pair of the admin report.
type ReportFilter struct {
	Field string
	Query string
}

// ReportQuery holds the storage-level filters of the admin report. Nil filters are not applied.
type ReportQuery struct {
	ChallengeID      *int64
	AccountID        *int64
	QuestionNum      *int
	ProvidedContains string
}

// ReportRecord is a partial solve joined with host metadata. Missing joins leave names empty.
type ReportRecord struct {
	Solve         PartialSolve
	ChallengeName string
	QuestionText  string
	TeamName      string
	UserName      string
}

// ReportRow is one enriched line of the admin report.
type ReportRow struct {
	AccountName   string    `json:"account_name"`
	AccountURL    string    `json:"account_url"`
	QuestionNum   int       `json:"question_num"`
	QuestionText  string    `json:"question_text"`
	Provided      string    `json:"provided"`
	Date          time.Time `json:"date"`
	IP            string    `json:"ip"`
	ChallengeID   int64     `json:"challenge_id"`
	ChallengeName string    `json:"challenge_name"`
}

// Report is the result of the admin partial-solve query.
type Report struct {
	ChallengeID   int64       `json:"challenge_id"`
	ChallengeName string      `json:"challenge_name"`
	Field         string      `json:"field,omitempty"`
	Query         string      `json:"q,omitempty"`
	Rows          []ReportRow `json:"partial_solves"`
}

// ProgressEvent is broadcast when an account newly solves a question or completes a challenge.
type ProgressEvent struct {
	ChallengeID int64      `json:"challengeId"`
	Account     AccountKey `json:"account"`
	QuestionNum int        `json:"questionNum"`
	Solved      int        `json:"solved"`
	Total       int        `json:"total"`
	Completed   bool       `json:"completed"`
	At          time.Time  `json:"at"`
}
