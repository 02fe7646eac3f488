package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gatehouse.dev/internal/audit"
	"gatehouse.dev/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type principalResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toPrincipalResponse(p *auth.Principal) principalResponse {
	return principalResponse{
		ID:        p.ID,
		Kind:      string(p.Kind),
		Username:  p.Username,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.svc.Register(r.Context(), auth.KindUser, auth.Candidate{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"principal_id": p.ID,
		"kind":         string(p.Kind),
	})
	writeJSON(w, http.StatusCreated, toPrincipalResponse(p))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, auth.KindUser)
}

func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, auth.KindAdmin)
}

func (a *API) login(w http.ResponseWriter, r *http.Request, kind auth.Kind) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, err := a.svc.Login(r.Context(), kind, req.Identifier, req.Password, clientIP(r))
	if err != nil {
		if errors.Is(err, auth.ErrTooManyAttempts) {
			w.Header().Set("Retry-After", strconv.Itoa(int(a.svc.Limiter().Window().Seconds())))
		}
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, toPrincipalResponse(principal))
}
