package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/middleware"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type createAdminRequest struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Role     adminauth.Role `json:"role"`
}

type roleRequest struct {
	Role adminauth.Role `json:"role"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (s *server) requestContext(c *gin.Context) context.Context {
	return adminauth.WithClientIP(c.Request.Context(), c.ClientIP())
}

func (s *server) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, token, maxAge, "/", s.opts.CookieDomain, s.opts.CookieSecure, true)
}

func (s *server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", s.opts.CookieDomain, s.opts.CookieSecure, true)
}

func (s *server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	res, err := s.engine.Login(s.requestContext(c), req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.setSessionCookie(c, res.Token, res.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       res.Identity,
	})
}

// Sessions are stateless; logout only drops the cookie.
func (s *server) handleLogout(c *gin.Context) {
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *server) handleVerify(c *gin.Context) {
	id, _ := middleware.IdentityFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          id,
	})
}

func (s *server) handleChangePassword(c *gin.Context) {
	id, _ := middleware.IdentityFromContext(c.Request.Context())

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_password and new_password are required"})
		return
	}

	if err := s.engine.ChangePassword(s.requestContext(c), id.Username, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *server) handleListAdmins(c *gin.Context) {
	admins, err := s.engine.ListAdmins()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admins": admins})
}

func (s *server) handleGetAdmin(c *gin.Context) {
	info, err := s.engine.GetAdmin(c.Param("username"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *server) handleCreateAdmin(c *gin.Context) {
	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	info, err := s.engine.CreateAdmin(s.requestContext(c), adminauth.NewAdmin{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		DisplayName: req.Name,
		Role:        req.Role,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *server) handleRemoveAdmin(c *gin.Context) {
	if err := s.engine.RemoveAdmin(s.requestContext(c), c.Param("username")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *server) handleUnlock(c *gin.Context) {
	if err := s.engine.Unlock(s.requestContext(c), c.Param("username")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *server) handleSetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}
	info, err := s.engine.SetRole(s.requestContext(c), c.Param("username"), req.Role)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *server) handleResetPassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}
	if err := s.engine.RotatePassword(s.requestContext(c), c.Param("username"), req.Password); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *server) handleHealth(c *gin.Context) {
	st := s.engine.Status()
	code := http.StatusOK
	if !st.Initialized || st.Corrupt || st.Error != "" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

// writeError maps engine errors to responses. Login failures collapse to one body.
func (s *server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, adminauth.ErrLoginFailed):
		s.logger.Debug("login rejected", "path", c.FullPath(), "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": adminauth.ErrLoginFailed.Error()})
	case errors.Is(err, adminauth.ErrLoginRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
	case adminauth.IsFatal(err):
		s.logger.Error("credential store unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store unavailable"})
	case errors.Is(err, adminauth.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
	case errors.Is(err, adminauth.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "admin already exists"})
	case errors.Is(err, adminauth.ErrInvariantViolation):
		c.JSON(http.StatusConflict, gin.H{"error": "at least one super_admin is required"})
	case errors.Is(err, adminauth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "password does not meet the length policy"})
	case errors.Is(err, adminauth.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is too long"})
	case errors.Is(err, adminauth.ErrPasswordReuse):
		c.JSON(http.StatusBadRequest, gin.H{"error": adminauth.ErrPasswordReuse.Error()})
	case errors.Is(err, adminauth.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid admin record"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
