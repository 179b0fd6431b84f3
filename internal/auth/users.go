// Package auth is the bundled credential-issuance subsystem: user
// registration with bcrypt-hashed passwords and HS256 bearer tokens for the
// HTTP surface. It shares nothing with the analysis pipeline.
package auth

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
)

// ErrUserExists is returned when registering a username twice.
var ErrUserExists = eris.New("auth: user already exists")

// ErrInvalidCredentials is returned on a failed login.
var ErrInvalidCredentials = eris.New("auth: invalid credentials")

// User is a registered account. PasswordHash never leaves the package.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Role         string
}

// UserRepo is an in-memory user store, safe for concurrent use.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewUserRepo creates an empty repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]User)}
}

// Create registers a new user with a bcrypt-hashed password.
func (r *UserRepo) Create(username, password, role string) (User, error) {
	if role == "" {
		role = "user"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, eris.Wrap(err, "auth: hash password")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; exists {
		return User{}, ErrUserExists
	}

	user := User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	r.users[username] = user
	return user, nil
}

// Authenticate checks a username/password pair.
func (r *UserRepo) Authenticate(username, password string) (User, error) {
	r.mu.RLock()
	user, ok := r.users[username]
	r.mu.RUnlock()

	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
