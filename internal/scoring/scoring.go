// Package scoring computes points for answer submissions. Everything here is
// deterministic and side-effect-free so results can be recomputed during
// recovery and verified in isolation.
package scoring

import (
	"strings"

	"trivia-session-service/internal/domain"
)

const (
	// BasePoints is awarded for any correct answer.
	BasePoints = 100
	// MaxTimeBonus decays linearly to zero as the answer time approaches the
	// question timeout.
	MaxTimeBonus = 50
	// StreakThreshold is the streak length that must be exceeded (after the
	// current answer is counted) before the streak bonus applies.
	StreakThreshold = 3
	// StreakBonus is a flat addition on top of base and time bonus.
	StreakBonus = 25
)

// Score evaluates one submission against the open question. A wrong or empty
// answer yields zero points and resets the streak.
func Score(q domain.Question, answer string, elapsedSeconds, timeoutSeconds float64, currentStreak int) (correct bool, points, newStreak int) {
	if !Matches(q, answer) {
		return false, 0, 0
	}

	newStreak = currentStreak + 1
	points = BasePoints + timeBonus(elapsedSeconds, timeoutSeconds)
	if newStreak > StreakThreshold {
		points += StreakBonus
	}
	return true, points, newStreak
}

func timeBonus(elapsed, timeout float64) int {
	if timeout <= 0 {
		return 0
	}
	remaining := 1 - elapsed/timeout
	if remaining <= 0 {
		return 0
	}
	if remaining > 1 {
		remaining = 1
	}
	return int(MaxTimeBonus * remaining)
}

// Matches reports whether the answer is correct for the question's kind.
// Matching is deliberately lenient: multiple choice accepts the option
// letter, the 1-based index, or the option text; true/false normalizes
// common synonyms; short answers ignore punctuation and accept containment
// either way.
func Matches(q domain.Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" || q.CorrectAnswer == "" {
		return false
	}

	switch q.Kind {
	case domain.KindMultipleChoice:
		return matchesChoice(q, answer)
	case domain.KindTrueFalse:
		return normalizeBool(answer) == normalizeBool(q.CorrectAnswer)
	case domain.KindShortAnswer:
		return matchesShortAnswer(q.CorrectAnswer, answer)
	default:
		return strings.EqualFold(answer, q.CorrectAnswer)
	}
}

func matchesChoice(q domain.Question, answer string) bool {
	correct := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))

	if idx, ok := optionIndex(answer, len(q.Options)); ok {
		return strings.ToLower(q.Options[idx]) == correct
	}

	lowered := strings.ToLower(answer)
	if lowered == correct {
		return true
	}
	// Answer text may match an option verbatim; that option must be the
	// correct one.
	for _, opt := range q.Options {
		if strings.ToLower(opt) == lowered {
			return strings.ToLower(opt) == correct
		}
	}
	return false
}

// optionIndex resolves "A".."Z" and "1".."9" style answers to an option slot.
func optionIndex(answer string, optionCount int) (int, bool) {
	if len(answer) != 1 || optionCount == 0 {
		return 0, false
	}
	c := answer[0]
	switch {
	case c >= 'A' && c <= 'Z':
		idx := int(c - 'A')
		return idx, idx < optionCount
	case c >= 'a' && c <= 'z':
		idx := int(c - 'a')
		return idx, idx < optionCount
	case c >= '1' && c <= '9':
		idx := int(c - '1')
		return idx, idx < optionCount
	}
	return 0, false
}

func normalizeBool(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "yes", "y", "1":
		return "true"
	default:
		return "false"
	}
}

func matchesShortAnswer(correct, answer string) bool {
	a := normalizeShort(answer)
	c := normalizeShort(correct)
	if a == "" || c == "" {
		return false
	}
	if a == c {
		return true
	}
	return strings.Contains(a, c) || strings.Contains(c, a)
}

func normalizeShort(raw string) string {
	replacer := strings.NewReplacer(".", "", ",", "")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
}
