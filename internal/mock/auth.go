package mock

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUserExists         = errors.New("User already exists")
	errInvalidCredentials = errors.New("Invalid credentials")
	errMissingToken       = errors.New("Missing authentication token")
	errTokenExpired       = errors.New("Token expired")
	errInvalidToken       = errors.New("Invalid token")
)

// users is the in-memory account table
type users struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

func newUsers() *users {
	return &users{hashes: make(map[string][]byte)}
}

func (u *users) register(username, password string) error {
	// MinCost keeps tests fast; nothing here protects real accounts
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.hashes[username]; ok {
		return errUserExists
	}
	u.hashes[username] = hash
	return nil
}

func (u *users) verify(username, password string) error {
	u.mu.RLock()
	hash, ok := u.hashes[username]
	u.mu.RUnlock()
	if !ok {
		return errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return errInvalidCredentials
	}
	return nil
}

// tokens issues and checks HS256 bearer tokens
type tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (t *tokens) issue(username string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// subject validates an Authorization header value and returns the username
func (t *tokens) subject(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(parts[1], &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errTokenExpired
		}
		return "", errInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}
