package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/server/auth"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/echofyteam/echofy-auth/internal/server/services"
)

const refreshTokenParam = "refresh-token"

// SessionCoordinator is implemented by services.SessionService.
type SessionCoordinator interface {
	SignIn(ctx context.Context, identifier, password string) (*models.TokenPair, error)
	SignUp(ctx context.Context, email, password, confirmPassword string) (*services.SignUpResult, error)
	SignOut(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	ForgetPrincipal(ctx context.Context, principalID string) (int64, error)
}

type SignInRequest struct {
	EmailOrUsername string `json:"emailOrUsername" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type UserResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	LastLogin *time.Time `json:"lastLogin"`
}

type SignUpResponse struct {
	SignInResponse TokenPairResponse `json:"signInResponse"`
	UserResponse   UserResponse      `json:"userResponse"`
}

type MeResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Authorities []string `json:"authorities"`
}

// Handler serves the authentication endpoints.
type Handler struct {
	sessions SessionCoordinator
}

func NewHandler(sessions SessionCoordinator) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: emailOrUsername and password are required", common.ErrValidation))
		return
	}

	pair, err := h.sessions.SignIn(c.Request.Context(), req.EmailOrUsername, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: email, password and confirmPassword are required", common.ErrValidation))
		return
	}

	res, err := h.sessions.SignUp(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SignUpResponse{
		SignInResponse: toTokenPairResponse(&res.Tokens),
		UserResponse: UserResponse{
			ID:        res.Principal.ID,
			Username:  res.Principal.Username,
			LastLogin: res.Principal.LastLogin,
		},
	})
}

func (h *Handler) RefreshToken(c *gin.Context) {
	token, ok := refreshTokenQuery(c)
	if !ok {
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), token)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (h *Handler) SignOut(c *gin.Context) {
	token, ok := refreshTokenQuery(c)
	if !ok {
		return
	}

	if err := h.sessions.SignOut(c.Request.Context(), token); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Me describes the authenticated caller.
func (h *Handler) Me(c *gin.Context) {
	a, ok := auth.FromContext(c.Request.Context())
	if !ok {
		abortWithError(c, common.ErrAuthenticationFailed)
		return
	}
	p := a.Principal
	c.JSON(http.StatusOK, MeResponse{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		Roles:       p.Roles,
		Authorities: a.Authorities,
	})
}

// DeleteMe closes the caller's account and drops all of its sessions.
func (h *Handler) DeleteMe(c *gin.Context) {
	a, ok := auth.FromContext(c.Request.Context())
	if !ok {
		abortWithError(c, common.ErrAuthenticationFailed)
		return
	}
	if _, err := h.sessions.ForgetPrincipal(c.Request.Context(), a.Principal.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func refreshTokenQuery(c *gin.Context) (string, bool) {
	token := c.Query(refreshTokenParam)
	if token == "" {
		abortWithError(c, fmt.Errorf("%w: %s query parameter is required", common.ErrValidation, refreshTokenParam))
		return "", false
	}
	return token, true
}

func toTokenPairResponse(p *models.TokenPair) TokenPairResponse {
	return TokenPairResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
