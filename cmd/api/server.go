package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"careflow/auth"
	"careflow/presence"
	"careflow/request"
	"careflow/routing"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "userID"
	ctxKeyRole   ctxKey = "role"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
}

type requestService interface {
	Create(ctx context.Context, params request.CreateParams) (request.Request, error)
	Accept(ctx context.Context, requestID, actorID string) (request.Request, error)
	Complete(ctx context.Context, requestID, actorID string) (request.Request, error)
	Snapshot(ctx context.Context) ([]request.Request, error)
	HistoryFor(ctx context.Context, actorID string) ([]request.Request, error)
	SurfaceEmergencies(ctx context.Context, actorID string, visible []request.Request) ([]request.Request, error)
}

type presenceService interface {
	SetShift(ctx context.Context, actorID, responderID string, onShift bool) (presence.Record, error)
	RegisterAddress(ctx context.Context, actorID, responderID, address string) (presence.Record, error)
	List(ctx context.Context) ([]presence.Record, error)
	AnyOnShift(ctx context.Context) (bool, error)
}

// Server wires the HTTP surface to the domain services.
type Server struct {
	authService     authService
	requestService  requestService
	presenceService presenceService
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/requests", s.requireAuth(s.handleRequests))
	mux.HandleFunc("/api/requests/", s.requireAuth(s.handleRequestDetail))
	mux.HandleFunc("/api/history", s.requireAuth(s.handleHistory))
	mux.HandleFunc("/api/presence/shift", s.requireAuth(s.handleShift))
	mux.HandleFunc("/api/presence/address", s.requireAuth(s.handleAddress))
	return mux
}

// requireAuth resolves the bearer token into the acting user and role. Every
// lifecycle operation downstream receives this explicit identity.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, role, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email already registered")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: result.Token, User: toUserResponse(result.User)})
}

type requestResponse struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Urgency     string  `json:"urgency"`
	Status      string  `json:"status"`
	CreatedBy   string  `json:"createdBy"`
	CreatedAt   string  `json:"createdAt"`
	AcceptedBy  *string `json:"acceptedBy,omitempty"`
	AcceptedAt  *string `json:"acceptedAt,omitempty"`
	CompletedBy *string `json:"completedBy,omitempty"`
	CompletedAt *string `json:"completedAt,omitempty"`
}

func toRequestResponse(r request.Request) requestResponse {
	resp := requestResponse{
		ID:          r.ID,
		Category:    string(r.Category),
		Urgency:     string(r.Urgency),
		Status:      string(r.Status),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		AcceptedBy:  r.AcceptedBy,
		CompletedBy: r.CompletedBy,
	}
	if r.AcceptedAt != nil {
		at := r.AcceptedAt.Format(time.RFC3339)
		resp.AcceptedAt = &at
	}
	if r.CompletedAt != nil {
		at := r.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &at
	}
	return resp
}

func toRequestResponses(reqs []request.Request) []requestResponse {
	out := make([]requestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toRequestResponse(r))
	}
	return out
}

// handleRequests serves the role-routed view on GET and raises a new request
// on POST.
func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleView(w, r)
	case http.MethodPost:
		s.handleCreateRequest(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type viewResponse struct {
	Active              []requestResponse `json:"active"`
	Pending             []requestResponse `json:"pending"`
	FallbackActive      bool              `json:"fallbackActive"`
	AnyResponderOnShift bool              `json:"anyResponderOnShift"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	actorID := r.Context().Value(ctxKeyUserID).(string)
	role := r.Context().Value(ctxKeyRole).(auth.Role)

	snap, err := s.requestService.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load requests failed")
		return
	}

	if role == auth.RoleRecipient {
		ranked := request.Rank(snap)
		writeJSON(w, http.StatusOK, viewResponse{
			Active:  toRequestResponses(ranked),
			Pending: []requestResponse{},
		})
		return
	}

	records, err := s.presenceService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load presence failed")
		return
	}

	view := routing.VisibleTo(viewRole(role), actorID, snap, records)

	// An eligible viewer auto-claims pending emergencies in their view so the
	// most urgent work is never left waiting behind a tap.
	if len(view.Active) > 0 {
		claimed, err := s.requestService.SurfaceEmergencies(r.Context(), actorID, view.Active)
		if err != nil {
			log.Printf("surface emergencies for %s: %v", actorID, err)
		}
		if len(claimed) > 0 {
			if snap, err = s.requestService.Snapshot(r.Context()); err == nil {
				view = routing.VisibleTo(viewRole(role), actorID, snap, records)
			}
		}
	}

	writeJSON(w, http.StatusOK, viewResponse{
		Active:              toRequestResponses(view.Active),
		Pending:             toRequestResponses(view.Pending),
		FallbackActive:      view.FallbackActive,
		AnyResponderOnShift: view.AnyResponderOnShift,
	})
}

func viewRole(role auth.Role) routing.Role {
	if role == auth.RoleOverseer {
		return routing.RoleOverseer
	}
	return routing.RoleResponder
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	actorID := r.Context().Value(ctxKeyUserID).(string)

	var body struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	created, err := s.requestService.Create(r.Context(), request.CreateParams{
		Category:  request.Category(body.Category),
		CreatedBy: actorID,
	})
	if err != nil {
		switch {
		case errors.Is(err, request.ErrUnknownCategory):
			writeError(w, http.StatusBadRequest, "unknown category")
		case errors.Is(err, request.ErrDuplicateActive):
			writeError(w, http.StatusConflict, "an active request of this category already exists")
		default:
			writeError(w, http.StatusInternalServerError, "create request failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

// handleRequestDetail routes POST /api/requests/{id}/accept and
// POST /api/requests/{id}/complete.
func (s *Server) handleRequestDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "expected /api/requests/{id}/{accept|complete}")
		return
	}
	requestID, action := parts[0], parts[1]
	actorID := r.Context().Value(ctxKeyUserID).(string)

	var (
		updated request.Request
		err     error
	)
	switch action {
	case "accept":
		updated, err = s.requestService.Accept(r.Context(), requestID, actorID)
	case "complete":
		updated, err = s.requestService.Complete(r.Context(), requestID, actorID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, request.ErrNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		case errors.Is(err, request.ErrAlreadyClaimed):
			writeError(w, http.StatusConflict, "request already claimed")
		case errors.Is(err, request.ErrAlreadyCompleted):
			writeError(w, http.StatusConflict, "request already completed")
		case errors.Is(err, request.ErrNotAccepted):
			writeError(w, http.StatusConflict, "request has not been accepted")
		default:
			writeError(w, http.StatusInternalServerError, "update request failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(updated))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actorID := r.Context().Value(ctxKeyUserID).(string)
	history, err := s.requestService.HistoryFor(r.Context(), actorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load history failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Items []requestResponse `json:"items"`
		Total int               `json:"total"`
	}{Items: toRequestResponses(history), Total: len(history)})
}

type presenceResponse struct {
	ResponderID   string `json:"responderId"`
	OnShift       bool   `json:"onShift"`
	HasAddress    bool   `json:"hasAddress"`
	LastUpdated   string `json:"lastUpdated"`
	AnyOnShiftNow bool   `json:"anyOnShiftNow"`
}

func (s *Server) toPresenceResponse(ctx context.Context, rec presence.Record) presenceResponse {
	any, err := s.presenceService.AnyOnShift(ctx)
	if err != nil {
		log.Printf("any on shift: %v", err)
	}
	return presenceResponse{
		ResponderID:   rec.ResponderID,
		OnShift:       rec.OnShift,
		HasAddress:    rec.NotifyAddress != nil && *rec.NotifyAddress != "",
		LastUpdated:   rec.LastUpdated.Format(time.RFC3339),
		AnyOnShiftNow: any,
	}
}

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	role := r.Context().Value(ctxKeyRole).(auth.Role)
	if role != auth.RoleResponder {
		writeError(w, http.StatusForbidden, "only responders keep a shift flag")
		return
	}

	actorID := r.Context().Value(ctxKeyUserID).(string)
	var body struct {
		OnShift bool `json:"onShift"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	rec, err := s.presenceService.SetShift(r.Context(), actorID, actorID, body.OnShift)
	if err != nil {
		if errors.Is(err, presence.ErrForbidden) {
			writeError(w, http.StatusForbidden, "not your presence record")
			return
		}
		writeError(w, http.StatusInternalServerError, "update shift failed")
		return
	}

	writeJSON(w, http.StatusOK, s.toPresenceResponse(r.Context(), rec))
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	role := r.Context().Value(ctxKeyRole).(auth.Role)
	if role != auth.RoleResponder {
		writeError(w, http.StatusForbidden, "only responders register notify addresses")
		return
	}

	actorID := r.Context().Value(ctxKeyUserID).(string)
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	rec, err := s.presenceService.RegisterAddress(r.Context(), actorID, actorID, body.Address)
	if err != nil {
		if errors.Is(err, presence.ErrForbidden) {
			writeError(w, http.StatusForbidden, "not your presence record")
			return
		}
		writeError(w, http.StatusInternalServerError, "register address failed")
		return
	}

	writeJSON(w, http.StatusOK, s.toPresenceResponse(r.Context(), rec))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}
