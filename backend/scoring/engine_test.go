package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"learnpath/backend/models"
)

func question(id uint, typ models.QuestionType, choices ...models.TestChoice) models.TestQuestion {
	for i := range choices {
		choices[i].QuestionID = id
		if choices[i].Order == 0 {
			choices[i].Order = i + 1
		}
	}
	return models.TestQuestion{Model: gorm.Model{ID: id}, Type: typ, Order: int(id), Choices: choices}
}

func choice(text string, correct bool) models.TestChoice {
	return models.TestChoice{Text: text, Value: text, IsCorrect: correct}
}

func answer(questionID uint, values ...string) models.UserAnswer {
	a := models.UserAnswer{QuestionID: questionID}
	for i, v := range values {
		a.SelectedAnswers = append(a.SelectedAnswers, models.SelectedAnswer{Value: v, Order: i + 1})
	}
	return a
}

func points(t *testing.T, q models.TestQuestion, a models.UserAnswer) float64 {
	t.Helper()
	res, err := Score(models.Test{Questions: []models.TestQuestion{q}}, []models.UserAnswer{a})
	require.NoError(t, err)
	return res.Score / 100
}

func TestSingleChoiceIsBinaryAndOrderInsensitive(t *testing.T) {
	q := question(1, models.SingleChoice, choice("a", true), choice("b", false), choice("c", false))

	assert.Equal(t, 1.0, points(t, q, answer(1, "a")))
	assert.Equal(t, 0.0, points(t, q, answer(1, "b")))
	assert.Equal(t, 0.0, points(t, q, answer(1, "a", "b")))
	assert.Equal(t, 0.0, points(t, q, answer(1)))

	multi := question(2, models.TrueFalse, choice("x", true), choice("y", true), choice("z", false))
	assert.Equal(t, 1.0, points(t, multi, answer(2, "x", "y")))
	assert.Equal(t, 1.0, points(t, multi, answer(2, "y", "x")))
	assert.Equal(t, 0.0, points(t, multi, answer(2, "x")))
}

func TestMultipleChoicePartialCredit(t *testing.T) {
	q := question(1, models.MultipleChoice,
		choice("a", true), choice("b", true), choice("c", true), choice("d", true), choice("e", false))

	assert.Equal(t, 1.0, points(t, q, answer(1, "a", "b", "c", "d")))
	assert.Equal(t, 1.0, points(t, q, answer(1, "a", "b", "c", "d", "e")))
	assert.Equal(t, 0.5, points(t, q, answer(1, "a", "c")))
	assert.Equal(t, 0.5, points(t, q, answer(1, "a", "c", "e")))
	assert.Equal(t, 0.0, points(t, q, answer(1, "e")))
}

func TestMultipleChoiceWithoutCorrectChoicesIsMalformed(t *testing.T) {
	q := question(1, models.MultipleChoice, choice("a", false), choice("b", false))

	_, err := Score(models.Test{Questions: []models.TestQuestion{q}}, []models.UserAnswer{answer(1, "a")})
	assert.ErrorIs(t, err, ErrMalformedQuestion)
}

func TestOrderingPositionalCredit(t *testing.T) {
	q := question(1, models.Ordering,
		choice("one", false), choice("two", false), choice("three", false), choice("four", false), choice("five", false))

	assert.Equal(t, 1.0, points(t, q, answer(1, "one", "two", "three", "four", "five")))
	assert.InDelta(t, 3.0/5.0, points(t, q, answer(1, "one", "two", "three", "five", "four")), 1e-9)
	assert.InDelta(t, 2.0/5.0, points(t, q, answer(1, "one", "two")), 1e-9)
	assert.Equal(t, 0.0, points(t, q, answer(1, "five", "four", "one", "two", "three")))
}

func TestOrderingUsesChoiceOrderNotStorageOrder(t *testing.T) {
	q := question(1, models.Ordering,
		models.TestChoice{Text: "second", Order: 2},
		models.TestChoice{Text: "first", Order: 1},
	)
	a := models.UserAnswer{QuestionID: 1, SelectedAnswers: []models.SelectedAnswer{
		{Value: "second", Order: 2},
		{Value: "first", Order: 1},
	}}

	assert.Equal(t, 1.0, points(t, q, a))
}

func TestTextRequiresApproval(t *testing.T) {
	q := question(1, models.Text)
	approved, rejected := true, false
	text := "essay"

	assert.Equal(t, 0.0, points(t, q, models.UserAnswer{QuestionID: 1, TextAnswer: &text}))
	assert.Equal(t, 0.0, points(t, q, models.UserAnswer{QuestionID: 1, TextAnswer: &text, IsApproved: &rejected}))
	assert.Equal(t, 1.0, points(t, q, models.UserAnswer{QuestionID: 1, TextAnswer: &text, IsApproved: &approved}))
}

func TestEmptyTestIsUnscorable(t *testing.T) {
	_, err := Score(models.Test{}, nil)
	assert.ErrorIs(t, err, ErrUnscorableTest)
}

func TestThreeOfFourSingleChoiceFails(t *testing.T) {
	var test models.Test
	var answers []models.UserAnswer
	for id := uint(1); id <= 4; id++ {
		test.Questions = append(test.Questions,
			question(id, models.SingleChoice, choice("right", true), choice("wrong", false)))
		if id < 4 {
			answers = append(answers, answer(id, "right"))
		} else {
			answers = append(answers, answer(id, "wrong"))
		}
	}

	res, err := Score(test, answers)
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.Score)
	assert.False(t, res.Passed)
}

func TestOrderingSwapScoresHalf(t *testing.T) {
	q := question(1, models.Ordering,
		choice("a", false), choice("b", false), choice("c", false), choice("d", false))

	res, err := Score(models.Test{Questions: []models.TestQuestion{q}}, []models.UserAnswer{answer(1, "a", "b", "d", "c")})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Score)
	assert.False(t, res.Passed)
}

func TestUnansweredQuestionsCountInDenominator(t *testing.T) {
	test := models.Test{Questions: []models.TestQuestion{
		question(1, models.SingleChoice, choice("a", true)),
		question(2, models.SingleChoice, choice("a", true)),
	}}

	res, err := Score(test, []models.UserAnswer{answer(1, "a"), answer(99, "a")})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Score)
}

func TestPassThreshold(t *testing.T) {
	var test models.Test
	var answers []models.UserAnswer
	for id := uint(1); id <= 5; id++ {
		test.Questions = append(test.Questions, question(id, models.SingleChoice, choice("a", true)))
		if id <= 4 {
			answers = append(answers, answer(id, "a"))
		}
	}

	res, err := Score(test, answers)
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.Score)
	assert.True(t, res.Passed)
}
