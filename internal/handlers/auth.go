package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SamiTelo/API-Football/internal/middleware"
	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/service"
)

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email,safeemail,max=254"`
	Password  string `json:"password" binding:"required,strongpassword,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email,safeemail"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type verifyTwoFactorRequest struct {
	UserID int64  `json:"userId" binding:"required,gt=0"`
	Code   string `json:"code" binding:"required,len=6,numeric"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,strongpassword,max=128"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type profileResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	_, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Compte créé. Vérifiez votre email pour l'activer.",
	})
}

func (h HandlerSet) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email vérifié avec succès"})
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if result.TwoFactorRequired {
		c.JSON(http.StatusCreated, gin.H{
			"twoFactorRequired": true,
			"userId":            result.UserID,
		})
		return
	}

	h.setRefreshCookie(c, result.Tokens.RefreshToken)
	c.JSON(http.StatusCreated, gin.H{
		"user":         toUserResponse(result.User),
		"access_token": result.Tokens.AccessToken,
	})
}

func (h HandlerSet) VerifyTwoFactor(c *gin.Context) {
	var req verifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	result, err := h.authService.VerifyTwoFactor(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result.Tokens.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"user":         toUserResponse(result.User),
		"access_token": result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

func (h HandlerSet) Refresh(c *gin.Context) {
	token, err := c.Cookie(h.cfg.Security.RefreshCookieName)
	if err != nil || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Refresh token manquant",
		})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			h.clearRefreshCookie(c)
		}
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result.Tokens.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"access_token": result.Tokens.AccessToken})
}

func (h HandlerSet) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cfg.Security.RefreshCookieName); err == nil && token != "" {
		if err := h.authService.Logout(c.Request.Context(), token); err != nil {
			middleware.RequestLogger(c, h.log).Error().Err(err).Msg("logout revoke failed")
		}
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Déconnexion réussie"})
}

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Utilisateur non trouvé",
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Si un compte existe pour cet email, un lien de réinitialisation a été envoyé."})
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Mot de passe réinitialisé avec succès"})
}

func (h HandlerSet) Profile(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		ID:        current.ID,
		FirstName: current.FirstName,
		LastName:  current.LastName,
		Email:     current.Email,
		Role:      string(current.RoleName()),
		CreatedAt: current.CreatedAt,
	})
}

func (h HandlerSet) CreateAdmin(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	creator, _ := middleware.CurrentUser(c)
	user, err := h.authService.CreateAdmin(c.Request.Context(), service.CreateAdminInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.ClientIP(),
		CreatorID: creator.ID,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateAccount) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "duplicate_account",
				"message": "Un utilisateur avec cet email existe déjà",
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Administrateur créé avec succès",
		"userId":  user.ID,
	})
}

func (h HandlerSet) setRefreshCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Security.RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.Security.RefreshCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (h HandlerSet) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Security.RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}
