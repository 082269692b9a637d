// Package seed reads and writes question sets in YAML and holds the bundled default set.
package seed

import (
	"context"
	"fmt"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"strings"
	"time"

	_ "embed"
)

//go:embed questions.yaml
var defaultQuestions string

type questionSet struct {
	Questions []questionDoc `yaml:"questions"`
}

type questionDoc struct {
	ID           string  `yaml:"id,omitempty"`
	Text         string  `yaml:"text"`
	SuccessProb  float64 `yaml:"successProb"`
	TimeLimitSec int     `yaml:"timeLimitSec"`
	MediaPosURL  string  `yaml:"mediaPosUrl"`
	MediaNegURL  string  `yaml:"mediaNegUrl"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active,omitempty"`
	Order  int   `yaml:"order"`
}

// Load parses a question set and validates every question.
func Load(r io.Reader) ([]models.Question, error) {
	var set questionSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return nil, errors.Wrap(err, "decode question set")
	}
	questions := make([]models.Question, 0, len(set.Questions))
	for i, doc := range set.Questions {
		q := models.Question{
			ID:           doc.ID,
			Text:         strings.TrimSpace(doc.Text),
			SuccessProb:  doc.SuccessProb,
			TimeLimitSec: doc.TimeLimitSec,
			MediaPosURL:  doc.MediaPosURL,
			MediaNegURL:  doc.MediaNegURL,
			Active:       doc.Active == nil || *doc.Active,
			Order:        doc.Order,
			UpdatedAt:    time.Time{},
		}
		if err := q.Draft().Validate(); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("question %d", i+1), slog.Int("position", i))
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Default returns the bundled question set.
func Default() []models.Question {
	questions, err := Load(strings.NewReader(defaultQuestions))
	if err != nil {
		panic(fmt.Sprintf("bundled questions are invalid: %v", err))
	}
	return questions
}

// Write encodes questions as a question set that Load accepts.
func Write(w io.Writer, questions []models.Question) error {
	set := questionSet{Questions: make([]questionDoc, 0, len(questions))}
	for _, q := range questions {
		active := q.Active
		set.Questions = append(set.Questions, questionDoc{
			ID:           q.ID,
			Text:         q.Text,
			SuccessProb:  q.SuccessProb,
			TimeLimitSec: q.TimeLimitSec,
			MediaPosURL:  q.MediaPosURL,
			MediaNegURL:  q.MediaNegURL,
			Active:       &active,
			Order:        q.Order,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(set); err != nil {
		return errors.Wrap(err, "encode question set")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "close encoder")
	}
	return nil
}

type Store interface {
	Count(ctx context.Context) (int, error)
	Import(ctx context.Context, questions []models.Question, now time.Time) error
}

// IfEmpty imports the bundled questions when the store has none. It returns the number of imported questions.
func IfEmpty(ctx context.Context, store Store, now time.Time) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "count questions")
	}
	if n > 0 {
		return 0, nil
	}
	questions := Default()
	if err = store.Import(ctx, questions, now); err != nil {
		return 0, errors.Wrap(err, "import default questions")
	}
	return len(questions), nil
}
