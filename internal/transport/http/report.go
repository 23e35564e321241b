package http

import (
	"embed"
	"errors"
	"html/template"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("partial_solves.html").Funcs(template.FuncMap{
	"fields": func() []string {
		return []string{
			app.FieldChallengeID,
			app.FieldChallengeName,
			app.FieldAccountID,
			app.FieldAccountName,
			app.FieldQuestionNum,
			app.FieldProvided,
		}
	},
}).ParseFS(templateFS, "templates/partial_solves.html"))

func wantsJSON(r *http.Request) bool {
	if isJSON(r) {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

// report serves the admin partial-solve listing as JSON or as an HTML page.
func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	id, err := challengeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := domain.ReportFilter{
		Field: r.URL.Query().Get("field"),
		Query: r.URL.Query().Get("q"),
	}
	rep, err := h.reporter.Report(r.Context(), id, filter)
	if errors.Is(err, domain.ErrWrongChallengeType) {
		writeFailure(w, http.StatusBadRequest, "This "+err.Error())
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeData(w, http.StatusOK, rep)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportTemplate.Execute(w, rep); err != nil {
		h.log.Error("render partial solves", zap.Int64("challenge_id", id), zap.Error(err))
	}
}
