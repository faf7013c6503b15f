package service

import "errors"

var (
	ErrDuplicateAccount    = errors.New("duplicate account")
	ErrTooManyAttempts     = errors.New("too many signup attempts")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrCodeExpired         = errors.New("two factor code expired")
	ErrInvalidCode         = errors.New("invalid two factor code")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotFound            = errors.New("not found")
	ErrConfiguration       = errors.New("configuration error")
	ErrMailDispatch        = errors.New("mail dispatch failed")
	ErrWeakPassword        = errors.New("weak password")
	ErrInvalidUpload       = errors.New("invalid upload")
)
