package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/auth"
	"subquestion-challenge-service/internal/domain"
)

type handlers struct {
	dispatcher *app.Dispatcher
	reporter   *app.Reporter
	log        *zap.Logger
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(h.log, w, r, err)
}

// writeServiceError maps service errors onto status codes. Unexpected errors are logged and hidden.
func writeServiceError(log *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrChallengeNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrWrongChallengeType),
		errors.Is(err, domain.ErrUnknownChallengeType),
		errors.Is(err, domain.ErrNegativePoints):
		writeFailure(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}

func challengeID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid challenge id")
	}
	return id, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	p, err := decodeChallenge(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if p.Type == "" {
		p.Type = domain.SubQuestionType
	}
	ct, err := h.dispatcher.Lookup(p.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := ct.Create(r.Context(), domain.CreateInput{Fields: p.ChallengeFields, Questions: p.Questions})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (h *handlers) read(w http.ResponseWriter, r *http.Request) {
	id, err := challengeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.dispatcher.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var acct *domain.AccountKey
	if claims, ok := auth.FromContext(r.Context()); ok {
		a := claims.Account()
		acct = &a
	}
	view, err := ct.Read(r.Context(), id, acct)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	id, err := challengeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := decodeChallenge(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.dispatcher.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := ct.Update(r.Context(), id, domain.UpdateInput{
		UpdateQuestions: bool(p.UpdateQuestions),
		Fields:          p.ChallengeFields,
		Questions:       p.Questions,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := challengeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.dispatcher.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := ct.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// attempt runs the platform's submission flow: evaluate, then commit the solve on
// completion or record the failure otherwise. Partial answers commit nothing further.
func (h *handlers) attempt(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	p, err := decodeAttempt(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.dispatcher.Resolve(r.Context(), p.ChallengeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	acct := claims.Account()
	sub := domain.Submission{
		QuestionNum: string(p.QuestionNum),
		Provided:    p.Submission,
		IP:          clientIP(r),
	}
	out, err := ct.Attempt(r.Context(), p.ChallengeID, acct, sub)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	switch out.Status {
	case domain.StatusCompleted:
		err = ct.Solve(r.Context(), p.ChallengeID, acct, sub)
	case domain.StatusIncorrect:
		err = ct.Fail(r.Context(), p.ChallengeID, acct, sub)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}
