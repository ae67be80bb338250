package jwttoken

import (
	"maestro/internal/platform/middleware"
)

// Validator adapts Service to the middleware's validation contract.
type Validator struct {
	svc *Service
}

func NewValidator(svc *Service) Validator {
	return Validator{svc: svc}
}

func (v Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := v.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		Subject:  claims.Subject,
		TenantID: claims.TenantID,
	}, nil
}
