package memory

import (
	"context"
	"errors"
	"strings"

	"trivia-session-service/internal/domain"
)

// StaticQuestionSource serves questions from an in-memory bank keyed by
// topic (useful for tests/demos). An entry under the empty topic acts as the
// fallback bank.
type StaticQuestionSource struct {
	banks map[string][]domain.Question
}

func NewStaticQuestionSource(banks map[string][]domain.Question) *StaticQuestionSource {
	normalized := make(map[string][]domain.Question, len(banks))
	for topic, questions := range banks {
		normalized[strings.ToLower(topic)] = questions
	}
	return &StaticQuestionSource{banks: normalized}
}

func (s *StaticQuestionSource) GenerateQuestions(_ context.Context, topic, _ string, count int) ([]domain.Question, error) {
	bank, ok := s.banks[strings.ToLower(topic)]
	if !ok {
		bank = s.banks[""]
	}
	if len(bank) == 0 {
		return nil, errors.New("no questions available for topic " + topic)
	}
	if count <= 0 || count > len(bank) {
		count = len(bank)
	}
	questions := make([]domain.Question, count)
	copy(questions, bank[:count])
	return questions, nil
}
