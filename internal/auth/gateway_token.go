// Package auth 签发与校验聊天网关连接出站 WebSocket 所用的令牌。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GatewayAudience 是网关令牌的受众。
const GatewayAudience = "chat-gateway"

// GatewayClaims 是网关令牌中的字段。
type GatewayClaims struct {
	Gateway string `json:"gateway"`
	jwt.RegisteredClaims
}

// TokenService 负责 HS256 网关令牌的生成与校验。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService 创建 TokenService。
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("gateway token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("gateway token ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue 为指定网关签发令牌。
func (s *TokenService) Issue(gateway string) (string, error) {
	if gateway == "" {
		return "", errors.New("gateway name is required")
	}
	now := s.now()
	claims := GatewayClaims{
		Gateway: gateway,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   gateway,
			Audience:  jwt.ClaimStrings{GatewayAudience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate 解析并验证令牌。
func (s *TokenService) Validate(tokenString string) (*GatewayClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &GatewayClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(GatewayAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*GatewayClaims)
	if !ok || !token.Valid || claims.Gateway == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// TTL 暴露令牌有效期。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
