package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const headerAPIKey = "X-API-Key"

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// APIKeyAuth checks requests against a bcrypt hash of the API key. The key
// is read from X-API-Key or an "Authorization: Bearer" header, or from the
// "api_key" query parameter on /ws where browsers cannot set headers.
type APIKeyAuth struct {
	hash func() string

	mu           sync.RWMutex
	verified     [sha256.Size]byte // digest of the last key that matched
	verifiedHash string            // hash that key matched
}

// NewAPIKeyAuth returns nil when hash is empty, which disables auth.
func NewAPIKeyAuth(hash string) *APIKeyAuth {
	if hash == "" {
		return nil
	}
	return NewAPIKeySource(func() string { return hash })
}

// NewAPIKeySource reads the hash from source on every request so it can be
// rotated while running. An empty hash rejects every key.
func NewAPIKeySource(source func() string) *APIKeyAuth {
	return &APIKeyAuth{hash: source}
}

// Handler returns the middleware. A nil receiver passes every request.
func (a *APIKeyAuth) Handler(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		key := extractAPIKey(r)
		if key == "" {
			writeUnauthorized(w, "api key required")
			return
		}
		if !a.check(key) {
			writeUnauthorized(w, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// check compares key to the current hash. The digest of a matching key is
// remembered per hash so that bcrypt runs once per key rather than per
// request, and a rotated hash invalidates it.
func (a *APIKeyAuth) check(key string) bool {
	hash := a.hash()
	if hash == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	a.mu.RLock()
	cached := a.verifiedHash == hash && subtle.ConstantTimeCompare(digest[:], a.verified[:]) == 1
	a.mu.RUnlock()
	if cached {
		return true
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
		return false
	}
	a.mu.Lock()
	a.verified, a.verifiedHash = digest, hash
	a.mu.Unlock()
	return true
}

func extractAPIKey(r *http.Request) string {
	if k := r.Header.Get(headerAPIKey); k != "" {
		return k
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("api_key")
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pertforge"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
