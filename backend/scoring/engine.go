// Package scoring computes attempt scores from a test's questions and the
// learner's answers. It performs no I/O.
package scoring

import (
	"errors"
	"fmt"

	"learnpath/backend/models"
)

// PassThreshold is the global pass mark in percent.
const PassThreshold = 80.0

var (
	ErrUnscorableTest    = errors.New("test has no questions")
	ErrMalformedQuestion = errors.New("question has no correct choices")
)

// Result is the outcome of scoring one attempt.
type Result struct {
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
}

// Strategy awards points in [0,1] for one answered question.
type Strategy interface {
	Points(q models.TestQuestion, a models.UserAnswer) (float64, error)
}

type Engine struct {
	strategies map[models.QuestionType]Strategy
}

// NewEngine installs the built-in strategies for every question type.
func NewEngine() *Engine {
	return &Engine{
		strategies: map[models.QuestionType]Strategy{
			models.Text:           textStrategy{},
			models.SingleChoice:   exactSetStrategy{},
			models.TrueFalse:      exactSetStrategy{},
			models.MultipleChoice: multipleChoiceStrategy{},
			models.Ordering:       orderingStrategy{},
		},
	}
}

var defaultEngine = NewEngine()

// Score scores answers against test using the default engine.
func Score(test models.Test, answers []models.UserAnswer) (Result, error) {
	return defaultEngine.Score(test, answers)
}

// Score sums the points of every answer and divides by the number of
// questions in the test. Unanswered questions count as zero.
func (e *Engine) Score(test models.Test, answers []models.UserAnswer) (Result, error) {
	total := len(test.Questions)
	if total == 0 {
		return Result{}, ErrUnscorableTest
	}

	questions := make(map[uint]models.TestQuestion, total)
	for _, q := range test.Questions {
		questions[q.ID] = q
	}

	earned := 0.0
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		s, ok := e.strategies[q.Type]
		if !ok {
			continue
		}
		p, err := s.Points(q, a)
		if err != nil {
			return Result{}, fmt.Errorf("question %d: %w", q.ID, err)
		}
		earned += p
	}

	score := earned / float64(total) * 100
	return Result{Score: score, Passed: score >= PassThreshold}, nil
}
