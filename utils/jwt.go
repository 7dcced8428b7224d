package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devlog/devblog/config"
)

// Token type markers embedded in claims so a refresh token can never be
// replayed as an access token or vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims defines JWT claims used in the application.
type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateTokenPair issues an access/refresh token pair for the given user.
func GenerateTokenPair(userID uint, username string) (access string, refresh string, err error) {
	cfg := config.Get()

	access, err = generateToken(userID, username, TokenTypeAccess, time.Duration(cfg.AccessTokenTTLMin)*time.Minute)
	if err != nil {
		return "", "", err
	}
	refresh, err = generateToken(userID, username, TokenTypeRefresh, time.Duration(cfg.RefreshTokenTTLHrs)*time.Hour)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// RefreshAccessToken validates a refresh token and mints a new access token.
func RefreshAccessToken(refreshToken string) (string, error) {
	claims, err := ParseToken(refreshToken)
	if err != nil {
		return "", err
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", errors.New("token is not a refresh token")
	}
	cfg := config.Get()
	return generateToken(claims.UserID, claims.Username, TokenTypeAccess, time.Duration(cfg.AccessTokenTTLMin)*time.Minute)
}

func generateToken(userID uint, username, tokenType string, duration time.Duration) (string, error) {
	cfg := config.Get()

	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken validates a JWT and returns its claims.
func ParseToken(tokenStr string) (*Claims, error) {
	cfg := config.Get()
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ParseAccessToken validates a JWT and additionally requires the access type.
func ParseAccessToken(tokenStr string) (*Claims, error) {
	claims, err := ParseToken(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, errors.New("token is not an access token")
	}
	return claims, nil
}
