package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"aton-catalog-admin/internal/cache"
	"aton-catalog-admin/internal/services"

	"github.com/google/uuid"
)

// SessionCookie names the cookie that ties a browser to its working copy
const SessionCookie = "catalog_session"

// SessionStore keeps one CatalogService per browser session
type SessionStore struct {
	services   *cache.TTLCache[*services.CatalogService]
	newService func() *services.CatalogService
	ttl        time.Duration
}

// NewSessionStore creates a session store. Expired sessions have their
// working copy discarded.
func NewSessionStore(ttl, cleanupInterval time.Duration, newService func() *services.CatalogService) *SessionStore {
	onEvict := func(id string, svc *services.CatalogService) {
		svc.Discard()
		slog.Debug("Session expired", "session_id", id)
	}

	return &SessionStore{
		services:   cache.NewTTLCache(ttl, cleanupInterval, onEvict),
		newService: newService,
		ttl:        ttl,
	}
}

// Service returns the caller's CatalogService, starting a session when the
// request carries no valid session cookie.
func (s *SessionStore) Service(w http.ResponseWriter, r *http.Request) *services.CatalogService {
	id := ""
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if parsed, err := uuid.Parse(cookie.Value); err == nil {
			id = parsed.String()
		}
	}

	if id == "" {
		id = uuid.NewString()
		slog.Debug("Session started", "session_id", id, "remote_addr", r.RemoteAddr)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return s.services.GetOrCreate(id, s.newService)
}

// Active returns the number of live sessions
func (s *SessionStore) Active() int {
	return s.services.ActiveSize()
}

// Stop stops the expiry loop
func (s *SessionStore) Stop() {
	s.services.Stop()
}
