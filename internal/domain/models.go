package domain

import "time"

// TenantScope identifies one addressable session slot. Two scopes with the
// same channel but different communities are unrelated.
type TenantScope struct {
	CommunityID string `json:"communityId"`
	ChannelID   string `json:"channelId"`
}

func (s TenantScope) String() string {
	return s.CommunityID + ":" + s.ChannelID
}

// Mode governs how an open question closes.
type Mode string

const (
	// ModeSingleAnswer closes a question as soon as one participant answers
	// it correctly.
	ModeSingleAnswer Mode = "single"
	// ModeMultiAnswer keeps a question open for every participant until its
	// timeout elapses.
	ModeMultiAnswer Mode = "multi"
)

// Status is the authoritative lifecycle state of a session.
type Status string

const (
	StatusCreated      Status = "created"
	StatusQuestionOpen Status = "question_open"
	StatusScoring      Status = "scoring"
	StatusCompleted    Status = "completed"
	StatusAborted      Status = "aborted"
	StatusRecovering   Status = "recovering"
)

// Terminal reports whether the session can no longer progress.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// QuestionKind tags the question variant. Only the fields valid for the kind
// are populated.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindTrueFalse      QuestionKind = "true_false"
	KindShortAnswer    QuestionKind = "short_answer"
)

// Question is one entry of a session's question bank.
type Question struct {
	Kind           QuestionKind `json:"kind"`
	Text           string       `json:"text"`
	Options        []string     `json:"options,omitempty"` // multiple choice only
	CorrectAnswer  string       `json:"correctAnswer"`
	Explanation    string       `json:"explanation,omitempty"`
	TimeoutSeconds int          `json:"timeoutSeconds"`
}

// ParticipantState accumulates one participant's results across a session.
type ParticipantState struct {
	Points                  int  `json:"points"`
	CorrectCount            int  `json:"correctCount"`
	WrongCount              int  `json:"wrongCount"`
	CurrentStreak           int  `json:"currentStreak"`
	AnsweredCurrentQuestion bool `json:"-"`
}

// Outcome reports what happened to one answer submission.
type Outcome struct {
	Accepted       bool `json:"accepted"`
	Correct        bool `json:"correct"`
	PointsAwarded  int  `json:"pointsAwarded"`
	ClosedQuestion bool `json:"closedQuestion"`
}

// LeaderboardEntry is a display-friendly view of one participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Points        int    `json:"points"`
	CorrectCount  int    `json:"correctCount"`
	WrongCount    int    `json:"wrongCount"`
}

// SessionView is a read-only snapshot of a session for display.
type SessionView struct {
	Scope         TenantScope        `json:"scope"`
	HostID        string             `json:"hostId"`
	Topic         string             `json:"topic"`
	Difficulty    string             `json:"difficulty"`
	Mode          Mode               `json:"mode"`
	Status        Status             `json:"status"`
	CurrentIndex  int                `json:"currentIndex"`
	QuestionCount int                `json:"questionCount"`
	NeedsRecovery bool               `json:"needsRecovery"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
}

// ParticipantResult is one participant's final tally in a session summary.
type ParticipantResult struct {
	ParticipantID string `json:"participantId"`
	Points        int    `json:"points"`
	CorrectCount  int    `json:"correctCount"`
	WrongCount    int    `json:"wrongCount"`
}

// SessionSummary is handed to the results sink when a session completes.
type SessionSummary struct {
	Scope         TenantScope         `json:"scope"`
	HostID        string              `json:"hostId"`
	Topic         string              `json:"topic"`
	Difficulty    string              `json:"difficulty"`
	QuestionCount int                 `json:"questionCount"`
	Mode          Mode                `json:"mode"`
	StartedAt     time.Time           `json:"startedAt"`
	EndedAt       time.Time           `json:"endedAt"`
	Participants  []ParticipantResult `json:"participants"` // points descending
}

// Snapshot is the durable, partial serialization of a session used to
// survive restarts. The question bank is deliberately excluded; content is
// regenerated on resume rather than trusted across a restart.
type Snapshot struct {
	Scope          TenantScope                 `json:"scope"`
	HostID         string                      `json:"hostId"`
	Topic          string                      `json:"topic"`
	Difficulty     string                      `json:"difficulty"`
	QuestionCount  int                         `json:"questionCount"`
	Mode           Mode                        `json:"mode"`
	CurrentIndex   int                         `json:"currentIndex"`
	Participants   map[string]ParticipantState `json:"participants"`
	StartedAt      time.Time                   `json:"startedAt"`
	LastActivityAt time.Time                   `json:"lastActivityAt"`
	SavedAt        time.Time                   `json:"savedAt"`
}
