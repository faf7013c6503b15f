package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/SamiTelo/API-Football/internal/security"
)

const passwordRuleMessage = "Le mot de passe doit contenir au moins 8 caractères, une majuscule, une minuscule et un chiffre."

var forbiddenEmailChars = regexp.MustCompile(`[{};,!%µ*$#\[\]()]`)

var registerOnce sync.Once

func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return security.StrongPassword(fl.Field().String())
		})
		_ = v.RegisterValidation("safeemail", func(fl validator.FieldLevel) bool {
			return !forbiddenEmailChars.MatchString(fl.Field().String())
		})
	})
}

var fieldMessages = map[string]string{
	"required":       "Champ requis",
	"email":          "Email invalide",
	"safeemail":      "Certains caractères sont interdits",
	"strongpassword": passwordRuleMessage,
	"len":            "Longueur invalide",
	"numeric":        "Doit contenir uniquement des chiffres",
	"gt":             "Doit être positif",
	"max":            "Valeur trop longue",
}

// respondValidation writes field level messages for binding failures.
func respondValidation(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_body",
			"message": "Corps de requête invalide",
		})
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "Valeur invalide"
		}
		fields[fe.Field()] = msg
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "validation_failed",
		"fields": fields,
	})
}
