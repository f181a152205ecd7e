package mockapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"assetdesk-client/internal/domain/auth"
	httptransport "assetdesk-client/internal/transport/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registrationRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Password1  string `json:"password1"`
	Password2  string `json:"password2"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

const requiredField = "This field is required."

func (s *Service) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondDetail(c, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return
	}

	errs := httptransport.FieldErrors{}
	if strings.TrimSpace(req.Username) == "" {
		errs.Add("username", requiredField)
	}
	if req.Password == "" {
		errs.Add("password", requiredField)
	}
	if len(errs) > 0 {
		httptransport.RespondFieldErrors(c, http.StatusBadRequest, errs)
		return
	}

	s.mu.RLock()
	u, ok := s.users[req.Username]
	s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		s.logger.Warn("login rejected for %q", req.Username)
		httptransport.RespondFieldErrors(c, http.StatusBadRequest, httptransport.FieldErrors{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}

	s.respondTokens(c, http.StatusOK, u)
}

func (s *Service) handleRegistration(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondDetail(c, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return
	}

	errs := httptransport.FieldErrors{}
	if strings.TrimSpace(req.Username) == "" {
		errs.Add("username", requiredField)
	}
	if req.Password1 == "" {
		errs.Add("password1", requiredField)
	} else if len(req.Password1) < 8 {
		errs.Add("password1", "This password is too short. It must contain at least 8 characters.")
	}
	if req.Password2 == "" {
		errs.Add("password2", requiredField)
	}
	if len(errs) == 0 && req.Password1 != req.Password2 {
		errs.Add("non_field_errors", "The two password fields didn't match.")
	}
	if len(errs) > 0 {
		httptransport.RespondFieldErrors(c, http.StatusBadRequest, errs)
		return
	}

	u, err := s.addUser(req.Username, req.Password1, req.Email, req.Department, false)
	if errors.Is(err, errUserExists) {
		httptransport.RespondFieldErrors(c, http.StatusBadRequest, httptransport.FieldErrors{
			"username": {"A user with that username already exists."},
		})
		return
	}
	if err != nil {
		s.logger.Error("registration failed: %v", err)
		httptransport.RespondDetail(c, http.StatusInternalServerError, "registration failed")
		return
	}
	s.logger.Info("registered user %s", u.Username)

	if !s.cfg.AutoLoginSignup {
		c.JSON(http.StatusCreated, gin.H{"detail": "Verification e-mail sent."})
		return
	}
	s.respondTokens(c, http.StatusCreated, u)
}

// handleLogout blacklists the posted refresh token, if any. It never fails.
func (s *Service) handleLogout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.Refresh != "" {
		if claims, err := s.refresh.VerifyToken(req.Refresh, auth.TokenTypeRefresh); err == nil {
			s.revoke(claims)
		}
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out."})
}

// handleRefresh rotates the refresh token: the presented one is blacklisted
// and a new pair is returned.
func (s *Service) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Refresh == "" {
		httptransport.RespondFieldErrors(c, http.StatusBadRequest, httptransport.FieldErrors{
			"refresh": {requiredField},
		})
		return
	}

	claims, err := s.refresh.VerifyToken(req.Refresh, auth.TokenTypeRefresh)
	if err != nil || s.isRevoked(claims.ID) {
		httptransport.RespondDetailCode(c, http.StatusUnauthorized, "Token is invalid or expired", "token_not_valid")
		return
	}

	s.mu.RLock()
	u, ok := s.users[claims.Username]
	s.mu.RUnlock()
	if !ok {
		httptransport.RespondDetailCode(c, http.StatusUnauthorized, "User not found", "user_not_found")
		return
	}

	access, refresh, err := s.issuePair(u)
	if err != nil {
		s.logger.Error("issuing tokens failed: %v", err)
		httptransport.RespondDetail(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	s.revoke(claims)
	c.JSON(http.StatusOK, gin.H{"access": access, "refresh": refresh})
}

func (s *Service) handleProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c).profile())
}

func (s *Service) respondTokens(c *gin.Context, status int, u *user) {
	access, refresh, err := s.issuePair(u)
	if err != nil {
		s.logger.Error("issuing tokens failed: %v", err)
		httptransport.RespondDetail(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	c.JSON(status, gin.H{
		"access":  access,
		"refresh": refresh,
		"user":    u.profile(),
	})
}
