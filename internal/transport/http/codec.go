package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"subquestion-challenge-service/internal/domain"
)

// errBadRequest marks payload problems that map to 400.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// flexBool accepts true/false as JSON booleans or as strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		*b = flexBool(truthy(t))
	case nil:
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// flexString keeps numbers and strings as their raw text so that a missing value and a
// malformed one stay distinguishable.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = flexString(t)
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case nil:
		*s = ""
	default:
		*s = flexString(data)
	}
	return nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

type challengePayload struct {
	Type string `json:"type"`
	domain.ChallengeFields
	UpdateQuestions flexBool               `json:"update_questions"`
	Questions       []domain.QuestionInput `json:"questions"`
}

type attemptPayload struct {
	ChallengeID int64      `json:"challenge_id"`
	QuestionNum flexString `json:"question_num"`
	Submission  string     `json:"submission"`
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// decodeChallenge reads a create or update payload, JSON or form encoded.
func decodeChallenge(r *http.Request) (challengePayload, error) {
	if isJSON(r) {
		var p challengePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return challengePayload{}, badRequest("invalid json: %v", err)
		}
		return p, nil
	}
	if err := parseForm(r); err != nil {
		return challengePayload{}, err
	}
	return challengeFromForm(r.PostForm)
}

func decodeAttempt(r *http.Request) (attemptPayload, error) {
	if isJSON(r) {
		var p attemptPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return attemptPayload{}, badRequest("invalid json: %v", err)
		}
		return p, nil
	}
	if err := parseForm(r); err != nil {
		return attemptPayload{}, err
	}
	id, err := strconv.ParseInt(r.PostForm.Get("challenge_id"), 10, 64)
	if err != nil {
		return attemptPayload{}, badRequest("invalid challenge_id")
	}
	return attemptPayload{
		ChallengeID: id,
		QuestionNum: flexString(r.PostForm.Get("question_num")),
		Submission:  r.PostForm.Get("submission"),
	}, nil
}

func parseForm(r *http.Request) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(1 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return badRequest("invalid form: %v", err)
	}
	return nil
}

// questionKey matches the flat form naming of question entries: question_<n>, flag_<n>,
// points_<n> and flag_id_<n>.
var questionKey = regexp.MustCompile(`^(question|flag_id|flag|points)_(\d+)$`)

func challengeFromForm(form map[string][]string) (challengePayload, error) {
	get := func(k string) (string, bool) {
		v, ok := form[k]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	var p challengePayload
	p.Type, _ = get("type")
	if v, ok := get("update_questions"); ok {
		p.UpdateQuestions = flexBool(truthy(v))
	}
	for key, dst := range map[string]**string{
		"name":            &p.Name,
		"description":     &p.Description,
		"connection_info": &p.ConnectionInfo,
		"category":        &p.Category,
		"state":           &p.State,
	} {
		if v, ok := get(key); ok {
			v := v
			*dst = &v
		}
	}
	if v, ok := get("max_attempts"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return challengePayload{}, badRequest("invalid max_attempts")
		}
		p.MaxAttempts = &n
	}
	if v, ok := get("next_id"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return challengePayload{}, badRequest("invalid next_id")
		}
		p.NextID = &n
	}

	entries := map[int]*domain.QuestionInput{}
	for key := range form {
		m := questionKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[2])
		if err != nil {
			return challengePayload{}, badRequest("invalid question number in %s", key)
		}
		v, _ := get(key)
		v = strings.TrimSpace(v)
		if v == "" {
			// blank inputs do not put a question number into the set
			continue
		}
		e, ok := entries[num]
		if !ok {
			e = &domain.QuestionInput{Num: num}
			entries[num] = e
		}
		switch m[1] {
		case "question":
			e.Text = v
		case "flag":
			e.FlagContent = v
		case "points":
			n, err := strconv.Atoi(v)
			if err != nil {
				return challengePayload{}, badRequest("invalid %s", key)
			}
			e.Points = &n
		case "flag_id":
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return challengePayload{}, badRequest("invalid %s", key)
			}
			e.FlagID = &id
		}
	}
	nums := make([]int, 0, len(entries))
	for n := range entries {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		p.Questions = append(p.Questions, *entries[n])
	}
	return p, nil
}
