package domain

import (
	"fmt"
	"time"
)

// Timestamp is a microsecond count since the Unix epoch, the ledger's native
// time unit. All block and quiz times are stored in this form.
type Timestamp int64

// TimestampFromTime converts a wall-clock time to ledger time.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Time converts back to wall-clock time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMicro(int64(ts))
}

// QuizMode is the participation policy of a quiz.
type QuizMode string

const (
	// QuizModePublic lets anyone submit an attempt.
	QuizModePublic QuizMode = "public"
	// QuizModeRegistration requires registering before submitting.
	QuizModeRegistration QuizMode = "registration"
)

// ParseQuizMode validates a client-supplied mode string.
func ParseQuizMode(raw string) (QuizMode, error) {
	switch QuizMode(raw) {
	case QuizModePublic, QuizModeRegistration:
		return QuizMode(raw), nil
	}
	return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown quiz mode %q", raw)}
}

// StartMode controls how a quiz window opens.
type StartMode string

const (
	// StartModeAuto opens the quiz as soon as its start time passes.
	StartModeAuto StartMode = "auto"
	// StartModeManual additionally requires the creator to start the quiz.
	StartModeManual StartMode = "manual"
)

// ParseStartMode validates a client-supplied start mode string.
func ParseStartMode(raw string) (StartMode, error) {
	switch StartMode(raw) {
	case StartModeAuto, StartModeManual:
		return StartMode(raw), nil
	}
	return "", &ValidationError{Field: "startMode", Reason: fmt.Sprintf("unknown start mode %q", raw)}
}

// QuestionType distinguishes single-answer from multi-answer questions.
type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "single"
	QuestionTypeMultiple QuestionType = "multiple"
)

// Question is one entry of a quiz's question set. Instances are built through
// NewQuestion so the type/correct-set invariant holds from construction on.
type Question struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Options        []string     `json:"options"`
	CorrectOptions []int        `json:"correctOptions"`
	Points         uint32       `json:"points"`
	Type           QuestionType `json:"type"`
}

// NewQuestion validates and builds a question. An empty rawType is derived
// from the number of correct options; the legacy "radio"/"checkbox" names
// are accepted and normalized.
func NewQuestion(id, text string, options []string, correct []int, points uint32, rawType string) (Question, error) {
	if text == "" {
		return Question{}, &ValidationError{Field: "question.text", Reason: "must not be empty"}
	}
	if len(options) == 0 {
		return Question{}, &ValidationError{Field: "question.options", Reason: "must have at least one option"}
	}
	if len(correct) == 0 {
		return Question{}, &ValidationError{Field: "question.correctOptions", Reason: "must have at least one correct option"}
	}
	seen := make(map[int]struct{}, len(correct))
	for _, idx := range correct {
		if idx < 0 || idx >= len(options) {
			return Question{}, &ValidationError{
				Field:  "question.correctOptions",
				Reason: fmt.Sprintf("index %d out of range for %d options", idx, len(options)),
			}
		}
		if _, dup := seen[idx]; dup {
			return Question{}, &ValidationError{Field: "question.correctOptions", Reason: fmt.Sprintf("duplicate index %d", idx)}
		}
		seen[idx] = struct{}{}
	}
	if points == 0 {
		return Question{}, &ValidationError{Field: "question.points", Reason: "must be positive"}
	}

	qtype, err := normalizeQuestionType(rawType, len(correct))
	if err != nil {
		return Question{}, err
	}
	if qtype == QuestionTypeSingle && len(correct) != 1 {
		return Question{}, &ValidationError{
			Field:  "question.type",
			Reason: fmt.Sprintf("single-answer question must have exactly one correct option, got %d", len(correct)),
		}
	}

	return Question{
		ID:             id,
		Text:           text,
		Options:        options,
		CorrectOptions: correct,
		Points:         points,
		Type:           qtype,
	}, nil
}

func normalizeQuestionType(raw string, correctCount int) (QuestionType, error) {
	switch raw {
	case "":
		if correctCount > 1 {
			return QuestionTypeMultiple, nil
		}
		return QuestionTypeSingle, nil
	case "radio", string(QuestionTypeSingle):
		return QuestionTypeSingle, nil
	case "checkbox", string(QuestionTypeMultiple):
		return QuestionTypeMultiple, nil
	}
	return "", &ValidationError{Field: "question.type", Reason: fmt.Sprintf("unknown question type %q", raw)}
}

// QuizSet is an immutable quiz definition plus its mutable participation
// bookkeeping (registrations, started flag, participant count). Questions
// never change after creation.
type QuizSet struct {
	ID               uint64     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Creator          string     `json:"creator"` // wallet address
	CreatorNickname  string     `json:"creatorNickname"`
	Questions        []Question `json:"questions"`
	TimeLimit        uint64     `json:"timeLimit"` // seconds
	StartTime        Timestamp  `json:"startTime"`
	EndTime          Timestamp  `json:"endTime"`
	CreatedAt        Timestamp  `json:"createdAt"`
	Mode             QuizMode   `json:"mode"`
	StartMode        StartMode  `json:"startMode"`
	Started          bool       `json:"isStarted"`
	RegisteredUsers  []string   `json:"registeredUsers"`
	ParticipantCount uint32     `json:"participantCount"`
}

// IsRegistered reports whether the wallet is in the registered-users set.
func (q *QuizSet) IsRegistered(wallet string) bool {
	for _, w := range q.RegisteredUsers {
		if w == wallet {
			return true
		}
	}
	return false
}

// QuestionByID returns the question with the given id, if any.
func (q *QuizSet) QuestionByID(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Attempt is one submitter's single, final answer submission for one quiz.
// Answers are aligned to the quiz's question order; a missing answer is an
// empty selection. Attempts are never mutated after being recorded.
type Attempt struct {
	QuizID      uint64    `json:"quizId"`
	User        string    `json:"user"` // wallet address
	Nickname    string    `json:"nickname"`
	Answers     [][]int   `json:"answers"`
	Score       uint32    `json:"score"`
	TimeTaken   uint64    `json:"timeTaken"` // milliseconds
	CompletedAt Timestamp `json:"completedAt"`
}

// User associates a wallet address with a display nickname.
type User struct {
	WalletAddress string    `json:"walletAddress"`
	Nickname      string    `json:"nickname"`
	CreatedAt     Timestamp `json:"createdAt"`
}

// LeaderboardEntry is a ranked view over one attempt. Rank is assigned at
// read time by RankEntries, never persisted.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	Nickname    string    `json:"nickname"`
	Score       uint32    `json:"score"`
	TimeTaken   uint64    `json:"timeTaken"`
	CompletedAt Timestamp `json:"completedAt"`
}

// AnswerSelection is a client's answer to one question. The question id is
// an opaque lookup key; selections for unknown ids are ignored by scoring.
type AnswerSelection struct {
	QuestionID string `json:"questionId"`
	Selected   []int  `json:"selectedAnswers"`
}

// QuestionParams is the client-supplied question definition inside
// CreateQuizParams. Question ids are assigned by the store at creation time,
// never taken from clients.
type QuestionParams struct {
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectOptions []int    `json:"correctOptions"`
	Points         uint32   `json:"points"`
	Type           string   `json:"type"`
}

// CreateQuizParams carries a create-quiz operation.
type CreateQuizParams struct {
	Creator     string           `json:"creator"` // wallet address
	Nickname    string           `json:"nickname"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []QuestionParams `json:"questions"`
	TimeLimit   uint64           `json:"timeLimit"` // seconds
	StartTime   Timestamp        `json:"startTime"`
	EndTime     Timestamp        `json:"endTime"`
	Mode        string           `json:"mode"`
	StartMode   string           `json:"startMode"`
}

// SubmitAnswersParams carries a submit-answers operation.
type SubmitAnswersParams struct {
	QuizID    uint64            `json:"quizId"`
	User      string            `json:"user"` // wallet address
	Nickname  string            `json:"nickname"`
	Answers   []AnswerSelection `json:"answers"`
	TimeTaken uint64            `json:"timeTaken"` // milliseconds
}
