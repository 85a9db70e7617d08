package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
	saltHexLen       = 32 // 16 random bytes, hex encoded, prefixing the stored hash
)

// Store is the slice of the configuration store the manager needs.
type Store interface {
	Get(section, key string, def any) any
	Set(section, key string, value any) error
}

// Manager implements Authorizer with password authentication and an idle
// session timeout. The admin password hash lives in the configuration store
// as salt||key hex under security.admin_password_hash; an empty hash means
// first run, where the first Authenticate sets the password.
type Manager struct {
	store        Store
	authorized   bool
	identity     string
	lastActivity time.Time
	callbacks    []func(authorized bool)

	now func() time.Time
}

// NewManager creates a manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// OnAuthChange registers a callback invoked whenever the authorization
// state flips. The kiosk UI uses this to relock widgets.
func (m *Manager) OnAuthChange(fn func(authorized bool)) {
	m.callbacks = append(m.callbacks, fn)
}

// Authenticate checks the password and, on success, marks the session
// authorized for identity. On first run the given password becomes the
// stored admin password.
func (m *Manager) Authenticate(identity, password string) bool {
	stored, _ := m.store.Get("security", "admin_password_hash", "").(string)

	if stored == "" {
		if !m.setInitialPassword(password) {
			return false
		}
	} else {
		if len(stored) <= saltHexLen {
			return false
		}
		salt := stored[:saltHexLen]
		key := stored[saltHexLen:]
		derived := hashPassword(password, salt)
		if subtle.ConstantTimeCompare([]byte(derived), []byte(key)) != 1 {
			return false
		}
	}

	m.authorized = true
	m.identity = identity
	m.lastActivity = m.now()
	m.notify()
	return true
}

func (m *Manager) setInitialPassword(password string) bool {
	raw := make([]byte, saltHexLen/2)
	if _, err := rand.Read(raw); err != nil {
		return false
	}
	salt := hex.EncodeToString(raw)
	if err := m.store.Set("security", "admin_password_hash", salt+hashPassword(password, salt)); err != nil {
		return false
	}
	return true
}

func hashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// IsAuthorized reports whether the session is still privileged. A session
// idle past security.session_timeout seconds expires here; an authorized
// check counts as activity.
func (m *Manager) IsAuthorized() bool {
	if !m.authorized {
		return false
	}
	if timeout := m.sessionTimeout(); timeout > 0 {
		if m.now().Sub(m.lastActivity) > timeout {
			m.expire()
			return false
		}
	}
	m.lastActivity = m.now()
	return true
}

func (m *Manager) sessionTimeout() time.Duration {
	switch v := m.store.Get("security", "session_timeout", 1800).(type) {
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return 1800 * time.Second
	}
}

// CurrentIdentity returns the acting user, or "unknown" before anyone has
// authenticated.
func (m *Manager) CurrentIdentity() string {
	if m.identity == "" {
		return "unknown"
	}
	return m.identity
}

// Logout drops authorization. The identity is kept for audit attribution of
// the logout itself.
func (m *Manager) Logout() {
	if !m.authorized {
		return
	}
	m.authorized = false
	m.notify()
}

func (m *Manager) expire() {
	m.authorized = false
	m.notify()
}

func (m *Manager) notify() {
	for _, fn := range m.callbacks {
		fn(m.authorized)
	}
}
