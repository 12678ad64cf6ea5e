package app

import (
	"context"
	"sort"
	"strings"

	"quizchain/internal/domain"
)

// SortField enumerates the quiz-list sort keys.
type SortField string

const (
	SortByCreatedAt     SortField = "createdAt"
	SortByTitle         SortField = "title"
	SortByQuestionCount SortField = "questionCount"
)

// SortDirection enumerates sort directions.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Sort pairs a field with a direction.
type Sort struct {
	By        SortField
	Direction SortDirection
}

// DefaultSort is creation order, oldest first.
var DefaultSort = Sort{By: SortByCreatedAt, Direction: SortAsc}

// ParseSort validates client-supplied sort parameters; empty strings fall
// back to the defaults.
func ParseSort(by, direction string) (Sort, error) {
	s := DefaultSort
	switch SortField(by) {
	case "":
	case SortByCreatedAt, SortByTitle, SortByQuestionCount:
		s.By = SortField(by)
	default:
		return Sort{}, &domain.ValidationError{Field: "sortBy", Reason: "unknown sort field " + by}
	}
	switch SortDirection(strings.ToUpper(direction)) {
	case "":
	case SortAsc, SortDesc:
		s.Direction = SortDirection(strings.ToUpper(direction))
	default:
		return Sort{}, &domain.ValidationError{Field: "sortDirection", Reason: "unknown sort direction " + direction}
	}
	return s, nil
}

// Page is a limit/offset window. Limit <= 0 means no limit; offsets are
// clamped to the slice bounds.
type Page struct {
	Limit  int
	Offset int
}

func paginate[T any](items []T, page Page) []T {
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

// sortQuizzes orders quiz copies by the requested key; ties fall back to the
// quiz id so pagination over repeated reads stays stable.
func sortQuizzes(quizzes []domain.QuizSet, s Sort) {
	less := func(a, b *domain.QuizSet) bool {
		switch s.By {
		case SortByTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case SortByQuestionCount:
			if len(a.Questions) != len(b.Questions) {
				return len(a.Questions) < len(b.Questions)
			}
		default:
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt < b.CreatedAt
			}
		}
		return a.ID < b.ID
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if s.Direction == SortDesc {
			return less(&quizzes[j], &quizzes[i])
		}
		return less(&quizzes[i], &quizzes[j])
	})
}

// QuizSets lists quizzes with pagination and sorting.
func (e *Engine) QuizSets(page Page, s Sort) []domain.QuizSet {
	e.mu.RLock()
	quizzes := make([]domain.QuizSet, 0, len(e.quizOrder))
	for _, id := range e.quizOrder {
		quizzes = append(quizzes, *e.quizzes[id])
	}
	e.mu.RUnlock()

	sortQuizzes(quizzes, s)
	return paginate(quizzes, page)
}

// QuizSet returns one quiz by id.
func (e *Engine) QuizSet(id uint64) (domain.QuizSet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	quiz, ok := e.quizzes[id]
	if !ok {
		return domain.QuizSet{}, domain.ErrQuizNotFound
	}
	return *quiz, nil
}

// User looks a user up by wallet address.
func (e *Engine) User(wallet string) (domain.User, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	user, ok := e.users[wallet]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *user, nil
}

// UserByNickname looks a user up by display nickname.
func (e *Engine) UserByNickname(nickname string) (domain.User, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wallet, ok := e.walletByNick[nickname]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *e.users[wallet], nil
}

// UserAttempts returns the wallet's attempts in submission order.
func (e *Engine) UserAttempts(wallet string) []domain.Attempt {
	e.mu.RLock()
	defer e.mu.RUnlock()
	attempts := make([]domain.Attempt, 0)
	for _, attempt := range e.attemptLog {
		if attempt.User == wallet {
			attempts = append(attempts, *attempt)
		}
	}
	return attempts
}

// UserCreatedQuizzes lists quizzes created under the given nickname.
func (e *Engine) UserCreatedQuizzes(nickname string, page Page, s Sort) []domain.QuizSet {
	e.mu.RLock()
	quizzes := make([]domain.QuizSet, 0)
	for _, id := range e.quizOrder {
		if quiz := e.quizzes[id]; quiz.CreatorNickname == nickname {
			quizzes = append(quizzes, *quiz)
		}
	}
	e.mu.RUnlock()

	sortQuizzes(quizzes, s)
	return paginate(quizzes, page)
}

// UserParticipatedQuizzes lists quizzes the wallet has attempted.
func (e *Engine) UserParticipatedQuizzes(wallet string, page Page, s Sort) []domain.QuizSet {
	e.mu.RLock()
	quizzes := make([]domain.QuizSet, 0)
	for _, id := range e.participations[wallet] {
		if quiz, ok := e.quizzes[id]; ok {
			quizzes = append(quizzes, *quiz)
		}
	}
	e.mu.RUnlock()

	sortQuizzes(quizzes, s)
	return paginate(quizzes, page)
}

// IsUserParticipated reports whether the wallet has an attempt for the quiz.
func (e *Engine) IsUserParticipated(quizID uint64, wallet string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.attempts[attemptKey{quizID, wallet}]
	return ok
}

// QuizLeaderboard returns the ranked board for one quiz, one entry per
// attempt. Ranks are recomputed on every read; with a cache configured the
// unranked snapshot may be served from it.
func (e *Engine) QuizLeaderboard(ctx context.Context, quizID uint64) ([]domain.LeaderboardEntry, error) {
	e.mu.RLock()
	_, ok := e.quizzes[quizID]
	e.mu.RUnlock()
	if !ok {
		return nil, domain.ErrQuizNotFound
	}

	compute := func() ([]domain.LeaderboardEntry, error) {
		return e.computeQuizBoard(quizID), nil
	}
	if e.boards == nil {
		entries, _ := compute()
		return domain.RankEntries(entries), nil
	}
	entries, err := e.boards.Board(ctx, quizBoardKey(quizID), compute)
	if err != nil {
		return nil, err
	}
	return domain.RankEntries(entries), nil
}

// GlobalLeaderboard returns the ranked board across all quizzes, one entry
// per attempt, not deduplicated per user.
func (e *Engine) GlobalLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	compute := func() ([]domain.LeaderboardEntry, error) {
		return e.computeGlobalBoard(), nil
	}
	if e.boards == nil {
		entries, _ := compute()
		return domain.RankEntries(entries), nil
	}
	entries, err := e.boards.Board(ctx, globalBoardKey, compute)
	if err != nil {
		return nil, err
	}
	return domain.RankEntries(entries), nil
}

func (e *Engine) computeQuizBoard(quizID uint64) []domain.LeaderboardEntry {
	e.mu.RLock()
	attempts := make([]*domain.Attempt, 0)
	for _, attempt := range e.attemptLog {
		if attempt.QuizID == quizID {
			attempts = append(attempts, attempt)
		}
	}
	e.mu.RUnlock()
	return domain.EntriesFromAttempts(attempts)
}

func (e *Engine) computeGlobalBoard() []domain.LeaderboardEntry {
	e.mu.RLock()
	attempts := make([]*domain.Attempt, len(e.attemptLog))
	copy(attempts, e.attemptLog)
	e.mu.RUnlock()
	return domain.EntriesFromAttempts(attempts)
}
