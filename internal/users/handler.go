package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/auth"
	"github.com/mgiraudeau/vocagym/internal/middleware"
	"github.com/mgiraudeau/vocagym/internal/telemetry/metrics"
	"github.com/mgiraudeau/vocagym/pkg"
)

const maxPRExercises = 3

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

type userRepo interface {
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	GetByID(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, userID int, params UpdateProfileParams) (*User, error)
	AddWeightEntry(ctx context.Context, userID int, weight float64, measuredAt time.Time) (*WeightEntry, error)
}

type sessionService interface {
	Login(ctx context.Context, userID int, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type Handler struct {
	repo     userRepo
	sessions sessionService
	metrics  *metrics.Manager
}

func NewHandler(repo userRepo, sessions sessionService, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		metrics:  metricsManager,
	}
}

type registerRequest struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	DisplayName string    `json:"displayName"`
	Gender      string    `json:"gender"`
	Height      float64   `json:"height"`
	Weight      float64   `json:"weight"`
	BirthDate   time.Time `json:"birthDate"`
}

func validGender(gender string) bool {
	switch gender {
	case "male", "female", "other":
		return true
	}
	return false
}

type authResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.TrimSpace(req.Email)

	switch {
	case !usernameRegex.MatchString(req.Username):
		http.Error(w, "username must be 3-20 chars: a-z, 0-9 or _", http.StatusBadRequest)
		return
	case !strings.Contains(req.Email, "@"):
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	case len(req.Password) < 6:
		http.Error(w, "password too short, 6 chars min", http.StatusBadRequest)
		return
	case !validGender(req.Gender):
		http.Error(w, "gender must be male, female or other", http.StatusBadRequest)
		return
	case req.Height <= 0:
		http.Error(w, "invalid height", http.StatusBadRequest)
		return
	case req.Weight <= 0:
		http.Error(w, "invalid weight", http.StatusBadRequest)
		return
	case req.BirthDate.IsZero():
		http.Error(w, "birth date is required", http.StatusBadRequest)
		return
	}

	// separate checks so the form can tell the user which field clashed
	usernameTaken, err := h.repo.UsernameExists(r.Context(), req.Username)
	if err != nil {
		log.Errorf("register, check username: %s", err)
		http.Error(w, "failed to register", http.StatusInternalServerError)
		return
	}
	if usernameTaken {
		http.Error(w, "username already taken", http.StatusBadRequest)
		return
	}
	if _, err := h.repo.GetByEmail(r.Context(), req.Email); !errors.Is(err, ErrUserNotFound) {
		if err != nil {
			log.Errorf("register, check email: %s", err)
			http.Error(w, "failed to register", http.StatusInternalServerError)
			return
		}
		http.Error(w, "email already registered", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(req.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}

	user, err := h.repo.Create(r.Context(), CreateUserParams{
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  passwordHash,
		DisplayName:   displayName,
		Gender:        req.Gender,
		Height:        req.Height,
		BirthDate:     req.BirthDate,
		InitialWeight: req.Weight,
	})
	if err != nil {
		// the pre-checks leave a small window for a concurrent register
		if errors.Is(err, ErrUserExists) {
			http.Error(w, "username or email already taken", http.StatusConflict)
			return
		}
		log.Errorf("register, create user: %s", err)
		http.Error(w, "failed to register", http.StatusInternalServerError)
		return
	}

	token, err := h.sessions.Login(r.Context(), user.ID, time.Now())
	if err != nil {
		log.Errorf("register, create session: %s", err)
		http.Error(w, "failed to register", http.StatusInternalServerError)
		return
	}

	h.metrics.CounterRegistrations.Inc()
	log.Printf("new user registered: %s", user.Username)

	h.writeJSON(w, authResponse{User: user, Token: token}, http.StatusCreated)
}

// HandleCheckUsername tells whether a username is still free, for
// inline validation on the registration form.
func (h *Handler) HandleCheckUsername(w http.ResponseWriter, r *http.Request) {
	username := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("username")))
	if !usernameRegex.MatchString(username) {
		http.Error(w, "username must be 3-20 chars: a-z, 0-9 or _", http.StatusBadRequest)
		return
	}

	exists, err := h.repo.UsernameExists(r.Context(), username)
	if err != nil {
		log.Errorf("check username: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]bool{"available": !exists}, http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.repo.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			log.Errorf("login, get user: %s", err)
		}
		// same response for unknown email and wrong password
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if !pkg.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.sessions.Login(r.Context(), user.ID, time.Now())
	if err != nil {
		log.Errorf("login, create session: %s", err)
		http.Error(w, "failed to login", http.StatusInternalServerError)
		return
	}

	h.metrics.CounterLogins.Inc()

	h.writeJSON(w, authResponse{User: user, Token: token}, http.StatusOK)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.AuthTokenHeader)
	loggedOut, err := h.sessions.Logout(r.Context(), token)
	if err != nil {
		log.Errorf("logout: %s", err)
		http.Error(w, "failed to logout", http.StatusInternalServerError)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	pkg.WriteTextResponseOK(w, "logged out")
}

func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	user, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		log.Errorf("get profile, user %d: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, user, http.StatusOK)
}

type updateProfileRequest struct {
	DisplayName   *string `json:"displayName"`
	ProfilePublic *bool   `json:"profilePublic"`
	PRExerciseIDs *[]int  `json:"prExerciseIds"`
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		if trimmed == "" {
			http.Error(w, "display name cannot be empty", http.StatusBadRequest)
			return
		}
		req.DisplayName = &trimmed
	}

	if req.PRExerciseIDs != nil {
		deduped := dedupePRExerciseIDs(*req.PRExerciseIDs)
		req.PRExerciseIDs = &deduped
	}

	user, err := h.repo.UpdateProfile(r.Context(), userID, UpdateProfileParams{
		DisplayName:   req.DisplayName,
		ProfilePublic: req.ProfilePublic,
		PRExerciseIDs: req.PRExerciseIDs,
	})
	if err != nil {
		log.Errorf("update profile, user %d: %s", userID, err)
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, user, http.StatusOK)
}

type addWeightEntryRequest struct {
	Weight     float64    `json:"weight"`
	MeasuredAt *time.Time `json:"measuredAt"`
}

func (h *Handler) HandleAddWeightEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req addWeightEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Weight <= 0 {
		http.Error(w, "weight must be positive", http.StatusBadRequest)
		return
	}

	measuredAt := time.Now()
	if req.MeasuredAt != nil {
		measuredAt = *req.MeasuredAt
	}

	entry, err := h.repo.AddWeightEntry(r.Context(), userID, req.Weight, measuredAt)
	if err != nil {
		log.Errorf("add weight entry, user %d: %s", userID, err)
		http.Error(w, "failed to add weight entry", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, entry, http.StatusCreated)
}

// dedupePRExerciseIDs keeps the first occurrence of each exercise ID,
// at most maxPRExercises of them.
func dedupePRExerciseIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	deduped := make([]int, 0, maxPRExercises)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
		if len(deduped) == maxPRExercises {
			break
		}
	}
	return deduped
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any, statusCode int) {
	resp, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, statusCode)
}
