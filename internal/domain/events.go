package domain

// Event is the envelope for every payload handed to the delivery layer.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventQuestion       = "question"
	EventQuestionResult = "questionResult"
	EventCompleted      = "completed"
	EventAborted        = "aborted"
	EventIdleTimeout    = "idleTimeout"
)

// QuestionPrompt is the participant-facing form of an open question. The
// correct answer is never included.
type QuestionPrompt struct {
	Index          int          `json:"index"`
	Total          int          `json:"total"`
	Kind           QuestionKind `json:"kind"`
	Text           string       `json:"text"`
	Options        []string     `json:"options,omitempty"`
	TimeoutSeconds int          `json:"timeoutSeconds"`
}

// ResponderResult records one participant's outcome for a closed question,
// ordered fastest first in QuestionResult.
type ResponderResult struct {
	ParticipantID  string  `json:"participantId"`
	Correct        bool    `json:"correct"`
	PointsAwarded  int     `json:"pointsAwarded"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// QuestionResult is delivered after each question closes.
type QuestionResult struct {
	Index         int                `json:"index"`
	CorrectAnswer string             `json:"correctAnswer"`
	Explanation   string             `json:"explanation,omitempty"`
	Responders    []ResponderResult  `json:"responders"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
}

// AbortNotice is delivered when a session ends without completing.
type AbortNotice struct {
	Reason string `json:"reason"`
}
