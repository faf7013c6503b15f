package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SamiTelo/API-Football/internal/middleware"
	"github.com/SamiTelo/API-Football/internal/service"
)

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	err error
	apiError
}{
	{service.ErrDuplicateAccount, apiError{http.StatusConflict, "duplicate_account", "Un utilisateur possède déjà cet email"}},
	{service.ErrTooManyAttempts, apiError{http.StatusConflict, "too_many_attempts", "Trop de comptes créés depuis cette IP. Réessayez demain."}},
	{service.ErrInvalidCredentials, apiError{http.StatusUnauthorized, "invalid_credentials", "Identifiants invalides"}},
	{service.ErrInvalidToken, apiError{http.StatusUnauthorized, "invalid_token", "Token invalide ou expiré"}},
	{service.ErrCodeExpired, apiError{http.StatusUnauthorized, "code_expired", "Code expiré"}},
	{service.ErrInvalidCode, apiError{http.StatusUnauthorized, "invalid_code", "Code invalide"}},
	{service.ErrUnauthorized, apiError{http.StatusUnauthorized, "unauthorized", "Non autorisé"}},
	{service.ErrInvalidRefreshToken, apiError{http.StatusUnauthorized, "invalid_refresh_token", "Refresh token invalide ou expiré"}},
	{service.ErrNotFound, apiError{http.StatusNotFound, "not_found", "Ressource introuvable"}},
	{service.ErrWeakPassword, apiError{http.StatusBadRequest, "weak_password", passwordRuleMessage}},
	{service.ErrInvalidUpload, apiError{http.StatusBadRequest, "invalid_upload", "Fichier invalide"}},
	{service.ErrConfiguration, apiError{http.StatusInternalServerError, "configuration_error", "Configuration invalide"}},
	{service.ErrMailDispatch, apiError{http.StatusInternalServerError, "mail_dispatch_failed", "L'email n'a pas pu être envoyé"}},
}

func classify(err error) apiError {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "internal_server_error", "Erreur interne du serveur"}
}

// respondError writes the public form of err. Server side failures are logged with the request id.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	apiErr := classify(err)
	if apiErr.status >= http.StatusInternalServerError {
		middleware.RequestLogger(c, h.log).Error().
			Err(err).
			Str("route", c.FullPath()).
			Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.status, gin.H{
		"error":   apiErr.code,
		"message": apiErr.message,
	})
}
