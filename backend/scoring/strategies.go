package scoring

import (
	"sort"

	"learnpath/backend/models"
)

// textStrategy credits a TEXT answer only after staff approval.
type textStrategy struct{}

func (textStrategy) Points(_ models.TestQuestion, a models.UserAnswer) (float64, error) {
	if a.IsApproved != nil && *a.IsApproved {
		return 1, nil
	}
	return 0, nil
}

// exactSetStrategy is all-or-nothing: the selection must equal the correct
// choices as a sorted multiset.
type exactSetStrategy struct{}

func (exactSetStrategy) Points(q models.TestQuestion, a models.UserAnswer) (float64, error) {
	correct := correctTexts(q)
	selected := selectedValues(a)
	sort.Strings(correct)
	sort.Strings(selected)
	if equalStrings(correct, selected) {
		return 1, nil
	}
	return 0, nil
}

// multipleChoiceStrategy awards the fraction of correct choices selected.
// Wrong selections are not penalized.
type multipleChoiceStrategy struct{}

func (multipleChoiceStrategy) Points(q models.TestQuestion, a models.UserAnswer) (float64, error) {
	correct := correctTexts(q)
	if len(correct) == 0 {
		return 0, ErrMalformedQuestion
	}
	selected := toSet(selectedValues(a))
	hits := 0
	for _, c := range correct {
		if _, ok := selected[c]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(correct)), nil
}

// orderingStrategy compares the submitted sequence position by position
// against the choices sorted by their order.
type orderingStrategy struct{}

func (orderingStrategy) Points(q models.TestQuestion, a models.UserAnswer) (float64, error) {
	choices := make([]models.TestChoice, len(q.Choices))
	copy(choices, q.Choices)
	sort.SliceStable(choices, func(i, j int) bool { return choices[i].Order < choices[j].Order })

	expected := make([]string, len(choices))
	for i, c := range choices {
		expected[i] = c.Text
	}
	submitted := selectedValues(a)

	if equalStrings(expected, submitted) {
		return 1, nil
	}
	if len(expected) == 0 {
		return 0, ErrMalformedQuestion
	}
	matches := 0
	for i := range expected {
		if i < len(submitted) && submitted[i] == expected[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(expected)), nil
}

func correctTexts(q models.TestQuestion) []string {
	out := make([]string, 0, len(q.Choices))
	for _, c := range q.Choices {
		if c.IsCorrect {
			out = append(out, c.Text)
		}
	}
	return out
}

// selectedValues returns the submitted values in submission order.
func selectedValues(a models.UserAnswer) []string {
	sel := make([]models.SelectedAnswer, len(a.SelectedAnswers))
	copy(sel, a.SelectedAnswers)
	sort.SliceStable(sel, func(i, j int) bool { return sel[i].Order < sel[j].Order })

	out := make([]string, len(sel))
	for i, s := range sel {
		out[i] = s.Value
	}
	return out
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
