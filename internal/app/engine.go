package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quizchain/internal/domain"
)

// maxQuizWindow bounds how far apart a quiz's start and end may be.
const maxQuizWindow = 100 * 365 * 24 * time.Hour

// Archive journals applied state so a restarted engine can restore it.
// Implementations must tolerate being called once per applied operation.
type Archive interface {
	SaveQuiz(ctx context.Context, quiz *domain.QuizSet) error
	SaveAttempt(ctx context.Context, attempt *domain.Attempt) error
	SaveUser(ctx context.Context, user *domain.User) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the full archived state, attempts in application order.
type Snapshot struct {
	Quizzes  []*domain.QuizSet
	Attempts []*domain.Attempt
	Users    []*domain.User
}

// BoardCache holds computed leaderboard snapshots keyed by board name.
// Implementations collapse concurrent recomputes of the same board.
type BoardCache interface {
	Board(ctx context.Context, key string, compute func() ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error)
	Invalidate(ctx context.Context, keys ...string)
}

const globalBoardKey = "board:global"

func quizBoardKey(quizID uint64) string {
	return fmt.Sprintf("board:quiz:%d", quizID)
}

type attemptKey struct {
	quizID uint64
	user   string
}

// Engine is the quiz ledger: it owns all state and applies operations one at
// a time, each successful application producing a block. Reads only ever see
// fully applied state. Archive and boards may be nil.
type Engine struct {
	clock   func() time.Time
	archive Archive
	boards  BoardCache

	mu             sync.RWMutex
	height         uint64
	nextQuizID     uint64
	quizzes        map[uint64]*domain.QuizSet
	quizOrder      []uint64
	attempts       map[attemptKey]*domain.Attempt
	attemptLog     []*domain.Attempt
	users          map[string]*domain.User
	walletByNick   map[string]string
	participations map[string][]uint64
	subscribers    map[chan BlockEvent]struct{}
}

func NewEngine(archive Archive, boards BoardCache) *Engine {
	return NewEngineWithClock(archive, boards, time.Now)
}

// NewEngineWithClock allows a deterministic clock in tests.
func NewEngineWithClock(archive Archive, boards BoardCache, clock func() time.Time) *Engine {
	return &Engine{
		clock:          clock,
		archive:        archive,
		boards:         boards,
		nextQuizID:     1,
		quizzes:        make(map[uint64]*domain.QuizSet),
		attempts:       make(map[attemptKey]*domain.Attempt),
		users:          make(map[string]*domain.User),
		walletByNick:   make(map[string]string),
		participations: make(map[string][]uint64),
		subscribers:    make(map[chan BlockEvent]struct{}),
	}
}

// Restore replays the archived snapshot into an empty engine. It must be
// called before the engine starts accepting operations.
func (e *Engine) Restore(ctx context.Context) error {
	if e.archive == nil {
		return nil
	}
	snapshot, err := e.archive.Load(ctx)
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, user := range snapshot.Users {
		e.users[user.WalletAddress] = user
		e.walletByNick[user.Nickname] = user.WalletAddress
	}
	for _, quiz := range snapshot.Quizzes {
		e.quizzes[quiz.ID] = quiz
		e.quizOrder = append(e.quizOrder, quiz.ID)
		if quiz.ID >= e.nextQuizID {
			e.nextQuizID = quiz.ID + 1
		}
	}
	for _, attempt := range snapshot.Attempts {
		e.attempts[attemptKey{attempt.QuizID, attempt.User}] = attempt
		e.attemptLog = append(e.attemptLog, attempt)
		e.participations[attempt.User] = append(e.participations[attempt.User], attempt.QuizID)
	}
	return nil
}

// CreateQuiz validates the definition, assigns the next sequential id and
// store-minted question ids, and records the quiz as immutable from then on.
func (e *Engine) CreateQuiz(ctx context.Context, params domain.CreateQuizParams) (uint64, error) {
	var quizID uint64
	err := e.apply(func(now domain.Timestamp) error {
		mode, startMode, err := validateQuizParams(params, now)
		if err != nil {
			return err
		}

		quizID = e.nextQuizID
		questions := make([]domain.Question, 0, len(params.Questions))
		for i, qp := range params.Questions {
			question, err := domain.NewQuestion(
				fmt.Sprintf("q%d-%d", quizID, i),
				qp.Text, qp.Options, qp.CorrectOptions, qp.Points, qp.Type,
			)
			if err != nil {
				return err
			}
			questions = append(questions, question)
		}

		// Last fallible step; nothing below can fail, so a rejected
		// definition leaves no trace.
		if err := e.setNicknameLocked(ctx, params.Creator, params.Nickname, now); err != nil {
			return err
		}

		quiz := &domain.QuizSet{
			ID:              quizID,
			Title:           params.Title,
			Description:     params.Description,
			Creator:         params.Creator,
			CreatorNickname: params.Nickname,
			Questions:       questions,
			TimeLimit:       params.TimeLimit,
			StartTime:       params.StartTime,
			EndTime:         params.EndTime,
			CreatedAt:       now,
			Mode:            mode,
			StartMode:       startMode,
			RegisteredUsers: []string{},
		}
		e.quizzes[quizID] = quiz
		e.quizOrder = append(e.quizOrder, quizID)
		e.nextQuizID++
		e.archiveQuiz(ctx, quiz)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return quizID, nil
}

// validateQuizParams checks every create-quiz constraint, reporting the
// first violation. Question-level constraints are checked by NewQuestion.
func validateQuizParams(params domain.CreateQuizParams, now domain.Timestamp) (domain.QuizMode, domain.StartMode, error) {
	fail := func(field, reason string) (domain.QuizMode, domain.StartMode, error) {
		return "", "", &domain.ValidationError{Field: field, Reason: reason}
	}
	if params.Creator == "" {
		return fail("creator", "must not be empty")
	}
	if params.Nickname == "" {
		return fail("nickname", "must not be empty")
	}
	if params.Title == "" {
		return fail("title", "must not be empty")
	}
	if params.Description == "" {
		return fail("description", "must not be empty")
	}
	if params.TimeLimit == 0 {
		return fail("timeLimit", "must be positive")
	}
	if params.StartTime <= now {
		return fail("startTime", "must be in the future")
	}
	if params.EndTime <= params.StartTime {
		return fail("endTime", "must be after start time")
	}
	if params.EndTime.Time().Sub(params.StartTime.Time()) > maxQuizWindow {
		return fail("endTime", "window exceeds 100 years")
	}
	if len(params.Questions) == 0 {
		return fail("questions", "must have at least one question")
	}
	mode, err := domain.ParseQuizMode(params.Mode)
	if err != nil {
		return "", "", err
	}
	startMode, err := domain.ParseStartMode(params.StartMode)
	if err != nil {
		return "", "", err
	}
	return mode, startMode, nil
}

// SubmitAnswers validates eligibility, scores the submission, and records
// the attempt. Validation and recording happen inside one applied operation,
// so two concurrent submissions from one wallet cannot both pass.
func (e *Engine) SubmitAnswers(ctx context.Context, params domain.SubmitAnswersParams) (uint32, error) {
	var score uint32
	err := e.apply(func(now domain.Timestamp) error {
		quiz, ok := e.quizzes[params.QuizID]
		if !ok {
			return domain.ErrQuizNotFound
		}
		if now < quiz.StartTime {
			return domain.ErrQuizNotStarted
		}
		if quiz.StartMode == domain.StartModeManual && !quiz.Started {
			return domain.ErrQuizNotStarted
		}
		if now > quiz.EndTime {
			return domain.ErrQuizExpired
		}
		if quiz.Mode == domain.QuizModeRegistration && !quiz.IsRegistered(params.User) {
			return domain.ErrNotRegistered
		}
		key := attemptKey{params.QuizID, params.User}
		if _, dup := e.attempts[key]; dup {
			return domain.ErrAlreadySubmitted
		}
		if params.Nickname == "" {
			return &domain.ValidationError{Field: "nickname", Reason: "must not be empty"}
		}
		if err := e.setNicknameLocked(ctx, params.User, params.Nickname, now); err != nil {
			return err
		}

		total, aligned := domain.ScoreAnswers(quiz, params.Answers)
		attempt := &domain.Attempt{
			QuizID:      params.QuizID,
			User:        params.User,
			Nickname:    params.Nickname,
			Answers:     aligned,
			Score:       total,
			TimeTaken:   params.TimeTaken,
			CompletedAt: now,
		}
		e.attempts[key] = attempt
		e.attemptLog = append(e.attemptLog, attempt)
		e.participations[params.User] = append(e.participations[params.User], params.QuizID)
		quiz.ParticipantCount++
		score = total

		e.archiveAttempt(ctx, attempt)
		e.archiveQuiz(ctx, quiz)
		if e.boards != nil {
			e.boards.Invalidate(ctx, quizBoardKey(params.QuizID), globalBoardKey)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// SetNickname creates the user on first call and renames afterwards. A
// nickname already claimed by a different wallet is rejected.
func (e *Engine) SetNickname(ctx context.Context, wallet, nickname string) error {
	return e.apply(func(now domain.Timestamp) error {
		if wallet == "" {
			return &domain.ValidationError{Field: "wallet", Reason: "must not be empty"}
		}
		if nickname == "" {
			return &domain.ValidationError{Field: "nickname", Reason: "must not be empty"}
		}
		return e.setNicknameLocked(ctx, wallet, nickname, now)
	})
}

func (e *Engine) setNicknameLocked(ctx context.Context, wallet, nickname string, now domain.Timestamp) error {
	if owner, taken := e.walletByNick[nickname]; taken && owner != wallet {
		return domain.ErrNicknameTaken
	}
	user, ok := e.users[wallet]
	if !ok {
		user = &domain.User{WalletAddress: wallet, Nickname: nickname, CreatedAt: now}
		e.users[wallet] = user
	} else if user.Nickname != nickname {
		delete(e.walletByNick, user.Nickname)
		user.Nickname = nickname
	}
	e.walletByNick[nickname] = wallet
	e.archiveUser(ctx, user)
	return nil
}

// RegisterForQuiz adds the wallet to a registration-mode quiz's registered
// set. Registration closes when the quiz window does.
func (e *Engine) RegisterForQuiz(ctx context.Context, quizID uint64, wallet string) error {
	return e.apply(func(now domain.Timestamp) error {
		quiz, ok := e.quizzes[quizID]
		if !ok {
			return domain.ErrQuizNotFound
		}
		if quiz.Mode != domain.QuizModeRegistration {
			return domain.ErrNotRegistrable
		}
		if now > quiz.EndTime {
			return domain.ErrQuizExpired
		}
		if quiz.IsRegistered(wallet) {
			return domain.ErrAlreadyRegistered
		}
		quiz.RegisteredUsers = append(quiz.RegisteredUsers, wallet)
		e.archiveQuiz(ctx, quiz)
		return nil
	})
}

// StartQuiz opens a manual-start quiz. Creator only; the time window still
// applies on submission.
func (e *Engine) StartQuiz(ctx context.Context, quizID uint64, wallet string) error {
	return e.apply(func(now domain.Timestamp) error {
		quiz, ok := e.quizzes[quizID]
		if !ok {
			return domain.ErrQuizNotFound
		}
		if quiz.StartMode != domain.StartModeManual {
			return domain.ErrNotManualStart
		}
		if wallet != quiz.Creator {
			return domain.ErrNotCreator
		}
		if quiz.Started {
			return domain.ErrAlreadyStarted
		}
		if now > quiz.EndTime {
			return domain.ErrQuizExpired
		}
		quiz.Started = true
		e.archiveQuiz(ctx, quiz)
		return nil
	})
}

// Archive writes are best-effort: the in-memory ledger state is the source
// of truth for a running process, so a journaling hiccup is logged rather
// than failing an already-validated operation.
func (e *Engine) archiveQuiz(ctx context.Context, quiz *domain.QuizSet) {
	if e.archive == nil {
		return
	}
	if err := e.archive.SaveQuiz(ctx, quiz); err != nil {
		log.Printf("archive quiz %d: %v", quiz.ID, err)
	}
}

func (e *Engine) archiveAttempt(ctx context.Context, attempt *domain.Attempt) {
	if e.archive == nil {
		return
	}
	if err := e.archive.SaveAttempt(ctx, attempt); err != nil {
		log.Printf("archive attempt quiz=%d user=%s: %v", attempt.QuizID, attempt.User, err)
	}
}

func (e *Engine) archiveUser(ctx context.Context, user *domain.User) {
	if e.archive == nil {
		return
	}
	if err := e.archive.SaveUser(ctx, user); err != nil {
		log.Printf("archive user %s: %v", user.WalletAddress, err)
	}
}
