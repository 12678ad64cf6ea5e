package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"quizchain/internal/app"
	"quizchain/internal/domain"
)

// Handler exposes the engine's operations and queries as a JSON API. The
// shape mirrors the mutation/query surface: one endpoint per operation,
// limit/offset/sortBy/sortDirection on the list queries.
type Handler struct {
	engine *app.Engine
}

func NewHandler(engine *app.Engine) *Handler {
	return &Handler{engine: engine}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes", h.createQuiz)
	mux.HandleFunc("GET /quizzes", h.listQuizzes)
	mux.HandleFunc("GET /quizzes/{id}", h.getQuiz)
	mux.HandleFunc("POST /quizzes/{id}/answers", h.submitAnswers)
	mux.HandleFunc("POST /quizzes/{id}/registrations", h.registerForQuiz)
	mux.HandleFunc("POST /quizzes/{id}/start", h.startQuiz)
	mux.HandleFunc("GET /quizzes/{id}/leaderboard", h.quizLeaderboard)
	mux.HandleFunc("GET /quizzes/{id}/participation/{wallet}", h.isParticipated)
	mux.HandleFunc("GET /leaderboard", h.globalLeaderboard)
	mux.HandleFunc("POST /nickname", h.setNickname)
	mux.HandleFunc("GET /users/{wallet}", h.getUser)
	mux.HandleFunc("GET /users/{wallet}/attempts", h.userAttempts)
	mux.HandleFunc("GET /users/{wallet}/participated", h.participatedQuizzes)
	mux.HandleFunc("GET /nicknames/{nickname}", h.userByNickname)
	mux.HandleFunc("GET /nicknames/{nickname}/quizzes", h.createdQuizzes)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var params domain.CreateQuizParams
	if !decode(w, r, &params) {
		return
	}
	id, err := h.engine.CreateQuiz(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"quizId": id})
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	page, sort, ok := listParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.QuizSets(page, sort))
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	quiz, err := h.engine.QuizSet(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type submitAnswersRequest struct {
	User      string                   `json:"user"`
	Nickname  string                   `json:"nickname"`
	Answers   []domain.AnswerSelection `json:"answers"`
	TimeTaken uint64                   `json:"timeTaken"`
}

type submitAnswersResponse struct {
	Success bool   `json:"success"`
	Score   uint32 `json:"score"`
}

func (h *Handler) submitAnswers(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	var req submitAnswersRequest
	if !decode(w, r, &req) {
		return
	}
	score, err := h.engine.SubmitAnswers(r.Context(), domain.SubmitAnswersParams{
		QuizID:    id,
		User:      req.User,
		Nickname:  req.Nickname,
		Answers:   req.Answers,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitAnswersResponse{Success: true, Score: score})
}

type walletRequest struct {
	Wallet string `json:"wallet"`
}

func (h *Handler) registerForQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	var req walletRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.RegisterForQuiz(r.Context(), id, req.Wallet); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) startQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	var req walletRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.StartQuiz(r.Context(), id, req.Wallet); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) quizLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	entries, err := h.engine.QuizLeaderboard(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) globalLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.GlobalLeaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type setNicknameRequest struct {
	Wallet   string `json:"wallet"`
	Nickname string `json:"nickname"`
}

func (h *Handler) setNickname(w http.ResponseWriter, r *http.Request) {
	var req setNicknameRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.SetNickname(r.Context(), req.Wallet, req.Nickname); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.User(r.PathValue("wallet"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) userByNickname(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.UserByNickname(r.PathValue("nickname"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) userAttempts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.UserAttempts(r.PathValue("wallet")))
}

func (h *Handler) createdQuizzes(w http.ResponseWriter, r *http.Request) {
	page, sort, ok := listParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.UserCreatedQuizzes(r.PathValue("nickname"), page, sort))
}

func (h *Handler) participatedQuizzes(w http.ResponseWriter, r *http.Request) {
	page, sort, ok := listParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.UserParticipatedQuizzes(r.PathValue("wallet"), page, sort))
}

func (h *Handler) isParticipated(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	participated := h.engine.IsUserParticipated(id, r.PathValue("wallet"))
	writeJSON(w, http.StatusOK, map[string]bool{"participated": participated})
}

func quizID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("BAD_REQUEST", "invalid quiz id"))
		return 0, false
	}
	return id, true
}

func listParams(w http.ResponseWriter, r *http.Request) (app.Page, app.Sort, bool) {
	q := r.URL.Query()
	page := app.Page{}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("BAD_REQUEST", "invalid limit"))
			return app.Page{}, app.Sort{}, false
		}
		page.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("BAD_REQUEST", "invalid offset"))
			return app.Page{}, app.Sort{}, false
		}
		page.Offset = n
	}
	sort, err := app.ParseSort(q.Get("sortBy"), q.Get("sortDirection"))
	if err != nil {
		writeError(w, err)
		return app.Page{}, app.Sort{}, false
	}
	return page, sort, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("BAD_REQUEST", "invalid JSON payload"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func errorBody(code, message string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "message": message}}
}

// writeError maps the engine's error taxonomy onto the HTTP surface:
// malformed definitions are 422, unknown ids are 404, attempt rejections
// and registration conflicts are 409 with a machine-readable reason.
func writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("VALIDATION_ERROR", validation.Error()))
		return
	}

	code, status := "INTERNAL", http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrUserNotFound):
		code, status = "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, domain.ErrQuizNotStarted):
		code, status = "NOT_STARTED", http.StatusConflict
	case errors.Is(err, domain.ErrQuizExpired):
		code, status = "EXPIRED", http.StatusConflict
	case errors.Is(err, domain.ErrNotRegistered):
		code, status = "NOT_REGISTERED", http.StatusConflict
	case errors.Is(err, domain.ErrAlreadySubmitted):
		code, status = "ALREADY_SUBMITTED", http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyRegistered):
		code, status = "ALREADY_REGISTERED", http.StatusConflict
	case errors.Is(err, domain.ErrNotRegistrable):
		code, status = "NOT_REGISTRABLE", http.StatusConflict
	case errors.Is(err, domain.ErrNicknameTaken):
		code, status = "NICKNAME_TAKEN", http.StatusConflict
	case errors.Is(err, domain.ErrNotCreator):
		code, status = "NOT_CREATOR", http.StatusForbidden
	case errors.Is(err, domain.ErrNotManualStart):
		code, status = "NOT_MANUAL_START", http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyStarted):
		code, status = "ALREADY_STARTED", http.StatusConflict
	default:
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, errorBody(code, err.Error()))
}
