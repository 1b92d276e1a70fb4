// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/orgkeeper/internal/apperr"
)

// DefaultTTL is the access token lifetime used when none is configured.
const DefaultTTL = 30 * time.Minute

// Supported signing algorithms
const (
	AlgHS256 = "HS256"
	AlgHS384 = "HS384"
	AlgHS512 = "HS512"
)

var (
	// ErrInvalidToken is returned for bad signatures, malformed tokens and
	// tokens missing the organization claims.
	ErrInvalidToken = apperr.New(apperr.KindInvalidToken, "invalid token")

	// ErrExpiredToken is returned once the exp claim has passed.
	ErrExpiredToken = apperr.New(apperr.KindExpiredToken, "token expired")
)

// Config holds token signing configuration
type Config struct {
	Secret    string
	Algorithm string
}

// Claims is the signed claim set of an access token. OrgID pins the token
// to one organization instance; a later organization reusing the same name
// has a different ID.
type Claims struct {
	OrgID        string `json:"oid"`
	Organization string `json:"org"`
	jwt.RegisteredClaims
}

// Service issues and validates HMAC-signed access tokens. The key is fixed
// for the lifetime of the service.
type Service struct {
	key    []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewService creates a token service from cfg.
func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Service{
		key:    []byte(cfg.Secret),
		method: method,
		now:    time.Now,
	}, nil
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "", AlgHS256:
		return jwt.SigningMethodHS256, nil
	case AlgHS384:
		return jwt.SigningMethodHS384, nil
	case AlgHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported token algorithm %q", alg)
	}
}

// Algorithm returns the configured signing algorithm name.
func (s *Service) Algorithm() string {
	return s.method.Alg()
}

// Issue signs a token binding subject to the organization identified by
// orgID (currently named organization), expiring after ttl.
func (s *Service) Issue(subject, orgID, organization string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		OrgID:        orgID,
		Organization: organization,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.key, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.KindExpiredToken, "token.validate", err)
		}
		return nil, apperr.Wrap(apperr.KindInvalidToken, "token.validate", err)
	}
	if claims.OrgID == "" || claims.Organization == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
