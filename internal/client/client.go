package client

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// HeaderKey carries the session token on API requests.
const HeaderKey = "X-NightGard-Key"

var errInvalidToken = errors.New("invalid token")

// in-memory session table, cleared on restart
var (
	ClientSessions   = make(map[string]*types.ClientSession)
	SessionIDCounter = 1
	SessionMutex     sync.RWMutex
)

// AddClientSession records a login under its token.
func AddClientSession(token, name, username string) *types.ClientSession {
	SessionMutex.Lock()
	defer SessionMutex.Unlock()

	now := time.Now()
	session := &types.ClientSession{
		ID:        SessionIDCounter,
		Token:     token,
		Name:      name,
		Username:  username,
		LastUsed:  now,
		CreatedAt: now,
	}
	ClientSessions[token] = session
	SessionIDCounter++
	return session
}

func GetClientSessionsByUser(username string) []*types.ClientSession {
	SessionMutex.RLock()
	defer SessionMutex.RUnlock()

	var sessions []*types.ClientSession
	for _, session := range ClientSessions {
		if session.Username == username {
			sessions = append(sessions, session)
		}
	}
	return sessions
}

func RemoveClientSession(token string) bool {
	SessionMutex.Lock()
	defer SessionMutex.Unlock()

	if _, exists := ClientSessions[token]; exists {
		delete(ClientSessions, token)
		return true
	}
	return false
}

// HasClientSession reports whether token belongs to a live session.
func HasClientSession(token string) bool {
	SessionMutex.RLock()
	defer SessionMutex.RUnlock()
	_, ok := ClientSessions[token]
	return ok
}

func UpdateSessionLastUsed(token string) {
	SessionMutex.Lock()
	defer SessionMutex.Unlock()

	if session, exists := ClientSessions[token]; exists {
		session.LastUsed = time.Now()
	}
}

// HashPassword returns a bcrypt hash, or "" if hashing failed.
func HashPassword(password string) string {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		return ""
	}
	return string(hashed)
}

func VerifyPassword(password, hashedPassword string) bool {
	if hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

func jwtSecret() []byte {
	if types.NightGardAppConfig == nil {
		return nil
	}
	return []byte(types.NightGardAppConfig.JWTSecret)
}

func jwtExpiry() time.Duration {
	hours := 24
	if types.NightGardAppConfig != nil && types.NightGardAppConfig.JWTExpiryDuration > 0 {
		hours = types.NightGardAppConfig.JWTExpiryDuration
	}
	return time.Duration(hours) * time.Hour
}

// GenerateToken signs an HS256 session token.
func GenerateToken(username, role string) (string, error) {
	now := time.Now()
	claims := &types.Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtExpiry())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "nightgard",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

func ValidateToken(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func HandleDeleteClientSession(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}
	username := c.GetString("username")

	SessionMutex.Lock()
	defer SessionMutex.Unlock()

	for token, session := range ClientSessions {
		if session.ID == id && session.Username == username {
			delete(ClientSessions, token)
			c.JSON(http.StatusOK, gin.H{"message": "Client session deleted"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Client session not found"})
}

// HandleDeleteCurrentClientSession logs the caller out.
func HandleDeleteCurrentClientSession(c *gin.Context) {
	token := c.GetHeader(HeaderKey)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token not provided"})
		return
	}
	RemoveClientSession(token)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func HandleGetClientSessions(c *gin.Context) {
	username := c.GetString("username")
	currentToken := c.GetString("token")

	clients := []gin.H{}
	for _, session := range GetClientSessionsByUser(username) {
		clients = append(clients, gin.H{
			"id":       session.ID,
			"name":     session.Name,
			"lastUsed": session.LastUsed.Format(time.RFC3339),
			"current":  session.Token == currentToken,
		})
	}
	c.JSON(http.StatusOK, clients)
}
