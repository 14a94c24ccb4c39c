package priority

import (
	"sort"

	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// questionTexts indexes LOOKUP_CA_QUESTIONS; the first text per id wins.
func questionTexts(t *table.Table) map[string]string {
	out := make(map[string]string)
	t.Each(func(_ int, r table.Row) {
		id, ok := r.Str(ColQuestionID)
		if !ok {
			return
		}
		if text, ok := r.Str(ColQuestionText); ok && out[id] == "" {
			out[id] = text
		}
	})
	return out
}

func meanResponse(group string, responses []response) (float64, int) {
	var m mean
	for _, r := range responses {
		if group == join.Overall || r.group == group {
			m.add(r.value)
		}
	}
	return m.value(), m.n
}

// questions averages the answers per question within one scope, lowest
// mean first. Responses without a question id are left out.
func questions(group string, responses []response, texts map[string]string) []Question {
	byID := make(map[string]*mean)
	for _, r := range responses {
		if r.question == "" || (group != join.Overall && r.group != group) {
			continue
		}
		if byID[r.question] == nil {
			byID[r.question] = &mean{}
		}
		byID[r.question].add(r.value)
	}
	out := make([]Question, 0, len(byID))
	for _, id := range sortedKeys(byID) {
		m := byID[id]
		out = append(out, Question{Group: group, QuestionID: id, Text: texts[id], MeanResponse: m.value(), N: m.n})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MeanResponse < out[j].MeanResponse
	})
	return out
}
