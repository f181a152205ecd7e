// Package mockapi is a development stand-in for the asset dashboard backend.
// It speaks the same auth protocol (JWT access/refresh pairs with rotation,
// DRF-style errors) so the client can be exercised end to end.
package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"assetdesk-client/internal/domain/auth"
	"assetdesk-client/internal/domain/auth/model"
	"assetdesk-client/internal/platform/config"
	httptransport "assetdesk-client/internal/transport/http"
)

const ctxUserKey = "mockapi.user"

type user struct {
	ID           int
	Username     string
	Email        string
	Department   string
	IsAdmin      bool
	PasswordHash []byte
	DateJoined   time.Time
}

func (u *user) profile() model.Profile {
	return model.Profile{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"department":  u.Department,
		"is_admin":    u.IsAdmin,
		"is_staff":    u.IsAdmin,
		"date_joined": u.DateJoined.UTC().Format(time.RFC3339),
	}
}

// Service implements the mock backend routes.
type Service struct {
	cfg     config.MockConfig
	logger  model.Logger
	access  *auth.AuthToken
	refresh *auth.AuthToken
	now     func() time.Time

	mu      sync.RWMutex
	users   map[string]*user
	nextID  int
	revoked map[string]time.Time
	assets  *assetRepository
}

// NewService seeds the configured users and the demo asset inventory.
func NewService(cfg config.MockConfig, logger model.Logger) (*Service, error) {
	if logger == nil {
		return nil, errors.New("mock api requires a logger")
	}
	if cfg.Secret == "" {
		return nil, errors.New("mock api requires a signing secret")
	}

	s := &Service{
		cfg:     cfg,
		logger:  logger,
		access:  auth.NewAuthToken(cfg.Secret).WithTTL(cfg.AccessTTL),
		refresh: auth.NewAuthToken(cfg.Secret).WithTTL(cfg.RefreshTTL),
		now:     time.Now,
		users:   make(map[string]*user),
		revoked: make(map[string]time.Time),
		assets:  newAssetRepository(),
	}
	for _, u := range cfg.Users {
		if _, err := s.addUser(u.Username, u.Password, u.Email, u.Department, u.IsAdmin); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	s.assets.seed(s.now())
	return s, nil
}

// Register 注册 mock 后端路由
func (s *Service) Register(router *httptransport.Router) {
	authGroup := router.API.Group("/auth")
	authGroup.POST("/login/", s.handleLogin)
	authGroup.POST("/registration/", s.handleRegistration)
	authGroup.POST("/logout/", s.handleLogout)
	authGroup.POST("/token/refresh/", s.handleRefresh)

	secured := router.API.Group("")
	secured.Use(s.AuthMiddleware())
	{
		secured.GET("/users/profile/", s.handleProfile)
		secured.GET("/assets/", s.handleAssetList)
		secured.GET("/assets/export/", s.handleAssetExport)
		secured.GET("/assets/:id/", s.handleAssetGet)
	}

	adminOnly := router.API.Group("")
	adminOnly.Use(s.AuthMiddleware(), s.adminMiddleware())
	{
		adminOnly.POST("/assets/", s.handleAssetCreate)
		adminOnly.DELETE("/assets/:id/", s.handleAssetDelete)
	}

	s.logger.Info("mock api routes registered (%d users)", len(s.cfg.Users))
}

// AuthMiddleware accepts requests carrying a valid access token.
func (s *Service) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httptransport.RespondDetail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := s.access.VerifyToken(token, auth.TokenTypeAccess)
		if err != nil {
			s.logger.Debug("rejected access token: %v", err)
			httptransport.RespondDetailCode(c, http.StatusUnauthorized, "Given token not valid for any token type", "token_not_valid")
			return
		}

		s.mu.RLock()
		u, ok := s.users[claims.Username]
		s.mu.RUnlock()
		if !ok {
			httptransport.RespondDetailCode(c, http.StatusUnauthorized, "User not found", "user_not_found")
			return
		}
		c.Set(ctxUserKey, u)
		c.Next()
	}
}

func (s *Service) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u := currentUser(c); u == nil || !u.IsAdmin {
			httptransport.RespondDetail(c, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *user {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*user)
	return u
}

func (s *Service) addUser(username, password, email, department string, isAdmin bool) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return nil, errUserExists
	}
	s.nextID++
	u := &user{
		ID:           s.nextID,
		Username:     username,
		Email:        email,
		Department:   department,
		IsAdmin:      isAdmin,
		PasswordHash: hash,
		DateJoined:   s.now(),
	}
	s.users[username] = u
	return u, nil
}

var errUserExists = errors.New("user exists")

// issuePair signs a fresh access/refresh pair for u.
func (s *Service) issuePair(u *user) (string, string, error) {
	id := strconv.Itoa(u.ID)
	access, err := s.access.GenerateToken(id, u.Username, auth.TokenTypeAccess)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.refresh.GenerateToken(id, u.Username, auth.TokenTypeRefresh)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// revoke blacklists a refresh token by jti until it would have expired.
func (s *Service) revoke(claims *auth.Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for jti, until := range s.revoked {
		if now.After(until) {
			delete(s.revoked, jti)
		}
	}
	until := now.Add(s.cfg.RefreshTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	s.revoked[claims.ID] = until
}

func (s *Service) isRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok
}
