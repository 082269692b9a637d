package models

import (
	"github.com/myrjola/decisionverse/internal/errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinQuestionTextLen = 10
	MinTimeLimitSec    = 5
)

// Question is one timed yes/no decision.
type Question struct {
	ID           string
	Text         string
	SuccessProb  float64
	TimeLimitSec int
	MediaPosURL  string
	MediaNegURL  string
	Active       bool
	Order        int
	UpdatedAt    time.Time
}

// MediaFor returns the illustration shown for outcome.
func (q Question) MediaFor(outcome Outcome) string {
	if outcome == OutcomeSuccess {
		return q.MediaPosURL
	}
	return q.MediaNegURL
}

// QuestionDraft holds the editable fields of a question.
type QuestionDraft struct {
	Text         string
	SuccessProb  float64
	TimeLimitSec int
	MediaPosURL  string
	MediaNegURL  string
}

// Draft returns the editable fields of q.
func (q Question) Draft() QuestionDraft {
	return QuestionDraft{
		Text:         q.Text,
		SuccessProb:  q.SuccessProb,
		TimeLimitSec: q.TimeLimitSec,
		MediaPosURL:  q.MediaPosURL,
		MediaNegURL:  q.MediaNegURL,
	}
}

// Validate returns [ValidationErrors] naming every violated field constraint.
func (d QuestionDraft) Validate() error {
	var verrs ValidationErrors
	if utf8.RuneCountInString(strings.TrimSpace(d.Text)) < MinQuestionTextLen {
		verrs.add("text", "El texto de la pregunta debe tener al menos 10 caracteres.")
	}
	if math.IsNaN(d.SuccessProb) || d.SuccessProb < 0 || d.SuccessProb > 1 {
		verrs.add("successProb", "La probabilidad de éxito debe estar entre 0 y 1.")
	}
	if d.TimeLimitSec < MinTimeLimitSec {
		verrs.add("timeLimitSec", "El tiempo límite debe ser al menos 5 segundos.")
	}
	if !isHTTPURL(d.MediaPosURL) {
		verrs.add("mediaPosUrl", "Introduce una URL válida.")
	}
	if !isHTTPURL(d.MediaNegURL) {
		verrs.add("mediaNegUrl", "Introduce una URL válida.")
	}
	return verrs.errOrNil()
}

// ParseQuestionDraft converts raw form values into a validated draft.
//
// The draft is returned even on error so that forms can be re-rendered with the submitted values.
func ParseQuestionDraft(text, successProb, timeLimitSec, mediaPosURL, mediaNegURL string) (QuestionDraft, error) {
	var verrs ValidationErrors
	d := QuestionDraft{
		Text:         strings.TrimSpace(text),
		SuccessProb:  0,
		TimeLimitSec: 0,
		MediaPosURL:  strings.TrimSpace(mediaPosURL),
		MediaNegURL:  strings.TrimSpace(mediaNegURL),
	}
	prob, err := strconv.ParseFloat(strings.TrimSpace(successProb), 64)
	if err != nil {
		verrs.add("successProb", "La probabilidad de éxito debe ser un número.")
		prob = -1
	}
	d.SuccessProb = prob
	limit, err := strconv.Atoi(strings.TrimSpace(timeLimitSec))
	if err != nil {
		verrs.add("timeLimitSec", "El tiempo límite debe ser un número entero.")
	}
	d.TimeLimitSec = limit

	if err = d.Validate(); err != nil {
		var more ValidationErrors
		_ = errors.As(err, &more)
		for _, e := range more {
			// Parse failures already explain the field.
			if verrs.For(e.Field) == "" {
				verrs = append(verrs, e)
			}
		}
	}
	return d, verrs.errOrNil()
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
