/*
Package auth handles PIN login for parents and staff.

PURPOSE:
  Both login flows work the same way: the caller presents a PIN, we compare
  it against every stored bcrypt hash of the relevant kind and mint a
  session token on the first match. PINs are short, so the hash comparison
  per candidate is what keeps brute force slow; the PIN itself never leaves
  this package unhashed.

SESSIONS:
  Tokens are opaque UUIDs held in memory. A restart logs everyone out,
  which is acceptable for a single kiosk deployment.

SEE ALSO:
  - registry package: the families and staff being logged in
  - api/server.go: the middleware wiring
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/littlepine/timekeeper/registry"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidPIN  = errors.New("invalid PIN")
	ErrPINTooShort = errors.New("PIN must be at least 4 digits")
	ErrNotLoggedIn = errors.New("not logged in")
	ErrStaffOnly   = errors.New("staff access required")
	ErrAdminOnly   = errors.New("admin access required")
)

// IsClientError reports whether err should surface as a 4xx response.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPIN) ||
		errors.Is(err, ErrPINTooShort) ||
		errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, ErrStaffOnly) ||
		errors.Is(err, ErrAdminOnly)
}

// =============================================================================
// PIN HASHING
// =============================================================================

// HashPIN validates and bcrypt-hashes a PIN for storage.
func HashPIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if len(pin) < 4 {
		return "", ErrPINTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing PIN: %w", err)
	}
	return string(hash), nil
}

// CheckPIN reports whether pin matches the stored hash.
func CheckPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// =============================================================================
// IDENTITY
// =============================================================================

// Role of a logged-in session.
type Role string

const (
	RoleParent Role = "parent"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// Identity is who a session belongs to. Exactly one of FamilyID and
// StaffID is set.
type Identity struct {
	FamilyID string `json:"family_id,omitempty"`
	StaffID  string `json:"staff_id,omitempty"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

func (id Identity) IsStaff() bool { return id.Role == RoleStaff || id.Role == RoleAdmin }
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store registry.Store
	log   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]Identity
}

func NewService(store registry.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		log:      log,
		sessions: make(map[string]Identity),
	}
}

// LoginParent matches the PIN against every family and starts a session
// for the first match.
func (s *Service) LoginParent(ctx context.Context, pin string) (string, Identity, error) {
	families, err := s.store.ListFamilies(ctx)
	if err != nil {
		return "", Identity{}, err
	}
	for _, family := range families {
		if CheckPIN(family.PINHash, pin) {
			id := Identity{FamilyID: family.ID, Name: family.Name, Role: RoleParent}
			return s.start(id), id, nil
		}
	}
	s.log.Warn("parent login failed")
	return "", Identity{}, ErrInvalidPIN
}

// LoginStaff matches the PIN against every staff member.
func (s *Service) LoginStaff(ctx context.Context, pin string) (string, Identity, error) {
	members, err := s.store.ListStaff(ctx)
	if err != nil {
		return "", Identity{}, err
	}
	for _, member := range members {
		if CheckPIN(member.PINHash, pin) {
			role := RoleStaff
			if member.Role == registry.RoleAdmin {
				role = RoleAdmin
			}
			id := Identity{StaffID: member.ID, Name: member.Name, Role: role}
			return s.start(id), id, nil
		}
	}
	s.log.Warn("staff login failed")
	return "", Identity{}, ErrInvalidPIN
}

func (s *Service) start(id Identity) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = id
	s.mu.Unlock()
	s.log.Info("session started", zap.String("name", id.Name), zap.String("role", string(id.Role)))
	return token
}

// Logout ends the session. Unknown tokens are a no-op.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Lookup resolves a session token.
func (s *Service) Lookup(token string) (Identity, bool) {
	s.mu.RLock()
	id, ok := s.sessions[token]
	s.mu.RUnlock()
	return id, ok
}

// =============================================================================
// HTTP MIDDLEWARE
// =============================================================================

type contextKey int

const identityKey contextKey = 1

// FromContext returns the identity attached by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity attaches an identity to a context. Exposed for handler tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Middleware resolves the bearer token, if any, and attaches the identity.
// Requests without a valid session pass through anonymous; the Require*
// wrappers enforce access per route group.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token != "" {
			if id, ok := s.Lookup(token); ok {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// RequireLogin rejects anonymous requests.
func RequireLogin(next http.Handler) http.Handler {
	return requireRole(next, func(Identity) bool { return true }, ErrNotLoggedIn)
}

// RequireStaff rejects requests that are not from a staff session.
func RequireStaff(next http.Handler) http.Handler {
	return requireRole(next, Identity.IsStaff, ErrStaffOnly)
}

// RequireAdmin rejects requests that are not from an admin session.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(next, Identity.IsAdmin, ErrAdminOnly)
}

func requireRole(next http.Handler, allowed func(Identity) bool, denial error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			writeDenied(w, http.StatusUnauthorized, ErrNotLoggedIn)
			return
		}
		if !allowed(id) {
			writeDenied(w, http.StatusForbidden, denial)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeDenied(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"success":false,"message":%q}`, err.Error())
}
