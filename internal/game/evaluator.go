package game

import (
	"context"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"log/slog"
	"strings"
	"time"
)

const (
	fallbackSuccess = "¡Buena decisión! Tu apuesta salió bien."
	fallbackFail    = "Esta vez no salió como esperabas. ¡Sigue intentándolo!"
)

// FeedbackGenerator writes the narrative text shown with an outcome.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, req models.FeedbackRequest) (string, error)
}

// Evaluator draws the outcome of a decision and decorates it with feedback and media.
type Evaluator struct {
	feedback FeedbackGenerator
	timeout  time.Duration
	draw     func() (float64, error)
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator. feedback may be nil, in which case the fallback texts are always used.
func NewEvaluator(feedback FeedbackGenerator, timeout time.Duration, draw func() (float64, error), logger *slog.Logger) *Evaluator {
	return &Evaluator{
		feedback: feedback,
		timeout:  timeout,
		draw:     draw,
		logger:   logger,
	}
}

// Evaluate resolves decision on q for the player nickname.
//
// The outcome is SUCCESS with probability q.SuccessProb regardless of the decision. Feedback problems never fail the
// evaluation. Only a failing random source returns an error.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	q models.Question,
	decision models.Decision,
	nickname string,
) (models.Result, error) {
	r, err := e.draw()
	if err != nil {
		return models.Result{}, errors.Join(models.ErrDependency, errors.Wrap(err, "draw outcome"))
	}
	outcome := models.OutcomeFail
	if r < q.SuccessProb {
		outcome = models.OutcomeSuccess
	}
	return models.Result{
		Outcome:  outcome,
		Feedback: e.generateFeedback(ctx, q, decision, outcome, nickname),
		MediaURL: q.MediaFor(outcome),
	}, nil
}

func (e *Evaluator) generateFeedback(
	ctx context.Context,
	q models.Question,
	decision models.Decision,
	outcome models.Outcome,
	nickname string,
) string {
	if e.feedback == nil {
		return fallbackFeedback(outcome)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.feedback.GenerateFeedback(ctx, models.FeedbackRequest{
		QuestionText: q.Text,
		Decision:     decision,
		Outcome:      outcome,
		Nickname:     nickname,
	})
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err == nil {
			err = errors.New("empty feedback")
		}
		e.logger.LogAttrs(ctx, slog.LevelWarn, "using fallback feedback",
			slog.String("question_id", q.ID), errors.SlogError(err))
		return fallbackFeedback(outcome)
	}
	return text
}

func fallbackFeedback(outcome models.Outcome) string {
	if outcome == models.OutcomeSuccess {
		return fallbackSuccess
	}
	return fallbackFail
}
