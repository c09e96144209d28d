// Package auth issues and verifies the signed bearer tokens used by the API.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"

	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)

// Claims are the application claims carried inside a token. Sub holds the
// member or admin ID, Role distinguishes the two account kinds, and Purpose
// distinguishes access tokens from refresh tokens.
type Claims struct {
	Sub     string
	Name    string
	Role    string
	Purpose string
	Branch  string
	JTI     string
	Exp     int64
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type jwtClaims struct {
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
	Branch  string `json:"branch,omitempty"`
	jwt.RegisteredClaims
}

func IssueToken(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwtClaims{
		Name:    claims.Name,
		Role:    claims.Role,
		Purpose: claims.Purpose,
		Branch:  claims.Branch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Sub,
			ID:        claims.JTI,
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.Exp, 0)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func ParseToken(secret []byte, token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.Role != RoleMember && claims.Role != RoleAdmin {
		return Claims{}, ErrInvalidToken
	}
	if claims.Purpose != PurposeAccess && claims.Purpose != PurposeRefresh {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Sub:     claims.Subject,
		Name:    claims.Name,
		Role:    claims.Role,
		Purpose: claims.Purpose,
		Branch:  claims.Branch,
		JTI:     claims.ID,
		Exp:     claims.ExpiresAt.Unix(),
	}, nil
}

// HashToken returns the hex SHA-256 of a token. Refresh tokens are stored
// hashed so a leaked session store cannot be replayed.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
