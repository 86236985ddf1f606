package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 7 * 24 * time.Hour
	guestExpiry      = 24 * time.Hour
	jwtIssuer        = "marbleous"
	jwtSecretSetting = "jwt_secret"
	minPasswordLen   = 4
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

// bcryptCost is a variable so tests can use the minimum cost
var bcryptCost = 12

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrRateLimited    = errors.New("too many login attempts, try again later")
	ErrInvalidToken   = errors.New("invalid token")
	errInternal       = errors.New("internal error")
)

// Claims is the payload of a session token
type Claims struct {
	PlayerID int64  `json:"pid"`
	Username string `json:"usr"`
	Guest    bool   `json:"gst,omitempty"`
	jwt.RegisteredClaims
}

// Auth handles accounts and session tokens
type Auth struct {
	db        *DB
	log       *zap.Logger
	jwtSecret []byte
	now       func() time.Time

	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	count   int
	resetAt time.Time
}

// NewAuth creates an Auth backed by db
func NewAuth(db *DB, logger *zap.Logger) *Auth {
	return &Auth{
		db:        db,
		log:       logger,
		jwtSecret: loadOrCreateSecret(db, logger),
		now:       time.Now,
		rateMap:   make(map[string]*rateEntry),
	}
}

// loadOrCreateSecret loads the signing key from settings, or generates and
// persists a new one. Tokens survive restarts only when it persists.
func loadOrCreateSecret(db *DB, logger *zap.Logger) []byte {
	if h := db.GetSetting(jwtSecretSetting); h != "" {
		if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
			return b
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if err := db.SetSetting(jwtSecretSetting, hex.EncodeToString(secret)); err != nil {
		logger.Warn("could not persist jwt secret", zap.Error(err))
	}
	return secret
}

// Register creates a new account and returns (id, token)
func (a *Auth) Register(username, password string) (int64, string, error) {
	username = strings.TrimSpace(username)

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return 0, "", fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if strings.HasPrefix(strings.ToLower(username), guestPrefix) {
		return 0, "", fmt.Errorf("username must not start with %q", guestPrefix)
	}
	if len(password) < minPasswordLen {
		return 0, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	exists, err := a.db.UsernameExists(username)
	if err != nil {
		a.log.Error("username lookup", zap.Error(err))
		return 0, "", errInternal
	}
	if exists {
		return 0, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return 0, "", errInternal
	}

	id, err := a.db.CreatePlayer(username, string(hash))
	if err != nil {
		a.log.Error("create player", zap.String("username", username), zap.Error(err))
		return 0, "", errInternal
	}

	token, err := a.generateToken(id, username, false)
	if err != nil {
		return 0, "", errInternal
	}
	a.log.Info("account registered", zap.Int64("player", id))
	return id, token, nil
}

// Login authenticates a user and returns (id, token)
func (a *Auth) Login(username, password, ip string) (int64, string, error) {
	if !a.checkRate(ip) {
		return 0, "", ErrRateLimited
	}

	player, err := a.db.GetPlayerByUsername(strings.TrimSpace(username))
	if err != nil {
		a.log.Error("player lookup", zap.Error(err))
		return 0, "", errInternal
	}
	if player == nil || player.IsGuest || player.PassHash == "" {
		return 0, "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(player.PassHash), []byte(password)); err != nil {
		return 0, "", ErrBadCredentials
	}

	token, err := a.generateToken(player.ID, player.Username, false)
	if err != nil {
		return 0, "", errInternal
	}
	return player.ID, token, nil
}

// Guest creates a throwaway account so a round can still be recorded and
// returns (id, username, token)
func (a *Auth) Guest() (int64, string, string, error) {
	username := GenerateGuestName()
	id, err := a.db.CreateGuest(username)
	if err != nil {
		a.log.Error("create guest", zap.Error(err))
		return 0, "", "", errInternal
	}
	token, err := a.generateToken(id, username, true)
	if err != nil {
		return 0, "", "", errInternal
	}
	return id, username, token, nil
}

// ValidateToken checks a token's signature and expiry and returns its claims
func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.PlayerID <= 0 || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (a *Auth) generateToken(playerID int64, username string, guest bool) (string, error) {
	now := a.now()
	expiry := jwtExpiry
	if guest {
		expiry = guestExpiry
	}
	claims := Claims{
		PlayerID: playerID,
		Username: username,
		Guest:    guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Subject:   strconv.FormatInt(playerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// checkRate allows maxLoginAttempts per ip per loginRateWindow
func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := a.now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.resetAt) {
		a.rateMap[ip] = &rateEntry{count: 1, resetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.count++
	return entry.count <= maxLoginAttempts
}
