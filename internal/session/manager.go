package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/proxykit/reverseproxy/internal/backend"
)

// CookieName is the cookie used to pin a client to a backend.
const CookieName = "proxy_session"

type session struct {
	backend  *backend.Backend
	lastUsed time.Time
}

// Manager pins clients to backends. Lookup order is the session cookie,
// then the client IP as a fallback for clients that drop cookies.
type Manager struct {
	mutex           sync.Mutex
	sessions        map[string]*session
	ttl             time.Duration
	cleanupInterval time.Duration
	logger          *slog.Logger
}

func NewManager(ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Manager{
		sessions:        make(map[string]*session),
		ttl:             ttl,
		cleanupInterval: 5 * time.Minute,
		logger:          logger,
	}
}

// Lookup returns the backend pinned to this client, or nil when there is no
// usable session. Expired sessions and sessions pointing at unhealthy
// backends are ignored.
func (m *Manager) Lookup(r *http.Request) *backend.Backend {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		if b := m.touch(cookie.Value); b != nil {
			return b
		}
	}

	return m.touch(ClientIP(r))
}

func (m *Manager) touch(key string) *backend.Backend {
	s, ok := m.sessions[key]
	if !ok {
		return nil
	}

	if time.Since(s.lastUsed) >= m.ttl || !s.backend.IsHealthy() {
		return nil
	}

	s.lastUsed = time.Now()
	return s.backend
}

// Pin records the client->backend binding under a fresh session ID and the
// client IP, and sets the session cookie on the response.
func (m *Manager) Pin(w http.ResponseWriter, r *http.Request, b *backend.Backend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	id := m.sessionID(r)

	m.sessions[id] = &session{backend: b, lastUsed: now}
	m.sessions[ClientIP(r)] = &session{backend: b, lastUsed: now}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Evict removes every session pinned to the given backend. Called when a
// backend goes unhealthy so its clients get rebalanced immediately.
func (m *Manager) Evict(b *backend.Backend) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := 0
	for key, s := range m.sessions {
		if s.backend == b {
			delete(m.sessions, key)
			removed++
		}
	}

	return removed
}

// Count returns the number of live (unexpired) sessions.
func (m *Manager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	now := time.Now()
	for _, s := range m.sessions {
		if now.Sub(s.lastUsed) < m.ttl {
			count++
		}
	}

	return count
}

// Stats returns session counters for the admin API.
func (m *Manager) Stats() map[string]any {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	active := 0
	now := time.Now()
	for _, s := range m.sessions {
		if now.Sub(s.lastUsed) < m.ttl {
			active++
		}
	}

	return map[string]any{
		"total_sessions":   len(m.sessions),
		"active_sessions":  active,
		"session_ttl":      m.ttl.String(),
		"cleanup_interval": m.cleanupInterval.String(),
	}
}

// StartCleanup periodically drops expired sessions until ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := m.removeExpired(); removed > 0 {
					m.logger.Debug("Cleaned up expired sessions", slog.Int("removed", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) removeExpired() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := 0
	now := time.Now()
	for key, s := range m.sessions {
		if now.Sub(s.lastUsed) >= m.ttl {
			delete(m.sessions, key)
			removed++
		}
	}

	return removed
}

func (m *Manager) sessionID(r *http.Request) string {
	input := ClientIP(r) + time.Now().String() + r.UserAgent()
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// ClientIP extracts the client address, preferring X-Forwarded-For and
// X-Real-IP for requests that arrived through another proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
