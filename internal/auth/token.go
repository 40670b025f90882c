package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/kizuna/internal/model"
)

// ErrTokenExpired はトークンの有効期限切れを表す。
// Verifyが返す*AuthErrorに対してerrors.Isで判定できる。
var ErrTokenExpired = errors.New("token expired")

// AuthErrorKind は認証エラーの種別。
type AuthErrorKind int

const (
	// AuthErrorInvalid は署名・形式・有効期限の検証に失敗したことを表す。
	AuthErrorInvalid AuthErrorKind = iota + 1
	// AuthErrorMalformed は検証は通ったがuser_data内のuser_idまたはusernameが欠けていることを表す。
	AuthErrorMalformed
)

// AuthError はトークン検証の失敗を表す。
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthErrorMalformed:
		return fmt.Sprintf("malformed token: %v", e.Err)
	default:
		return fmt.Sprintf("invalid token: %v", e.Err)
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// sessionClaims はトークンのペイロード。user_dataとexp以外のクレームは含めない。
type sessionClaims struct {
	UserData *model.Identity `json:"user_data,omitempty"`
	jwt.RegisteredClaims
}

// TokenService はIdentityを埋め込んだセッショントークンの発行と検証を行う。
// トークンはステートレスで、失効や更新の仕組みは持たない。
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
// algorithmはHS256、HS384、HS512のいずれか。
func NewTokenService(secret []byte, algorithm string, ttl time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive: %s", ttl)
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", algorithm)
	}
	return &TokenService{
		secret: secret,
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue はidentityをuser_dataに埋め込み、exp = now + TTL のトークンに署名する。
func (s *TokenService) Issue(identity model.Identity) (string, error) {
	claims := &sessionClaims{
		UserData: &identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、埋め込まれたIdentityを返す。
func (s *TokenService) Verify(token string) (model.Identity, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, &AuthError{Kind: AuthErrorInvalid, Err: ErrTokenExpired}
		}
		return model.Identity{}, &AuthError{Kind: AuthErrorInvalid, Err: err}
	}
	if !parsed.Valid {
		return model.Identity{}, &AuthError{Kind: AuthErrorInvalid, Err: errors.New("token is not valid")}
	}

	if claims.UserData == nil {
		return model.Identity{}, &AuthError{Kind: AuthErrorMalformed, Err: errors.New("user_data claim is missing")}
	}
	if claims.UserData.UserID == "" || claims.UserData.Username == "" {
		return model.Identity{}, &AuthError{Kind: AuthErrorMalformed, Err: errors.New("user_data lacks user_id or username")}
	}
	return *claims.UserData, nil
}
