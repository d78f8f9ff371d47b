package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
)

// Claims is the UploadToken payload: a signed, self-contained capability
// scoping an adapter call to one file and one negotiated chunk size.
// The shape mirrors a session-claims struct (UserID/Username/Email),
// swapping the user-session identity for an upload-session identity.
type Claims struct {
	FileID              string `json:"fileId"`
	FileHash            string `json:"fileHash,omitempty"`
	NegotiatedChunkSize int64  `json:"negotiatedChunkSize"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies UploadTokens. SecretKey and Issuer come
// from config.TokenConfig; ExpiresIn bounds how long a client may take
// between create and merge before it must start over.
type TokenSigner struct {
	SecretKey string
	Issuer    string
	ExpiresIn time.Duration
}

// NewTokenSigner constructs a signer from config.TokenConfig's fields,
// taken individually to avoid an import cycle with internal/config.
func NewTokenSigner(secretKey, issuer string, expiresIn time.Duration) *TokenSigner {
	return &TokenSigner{SecretKey: secretKey, Issuer: issuer, ExpiresIn: expiresIn}
}

// Issue signs a new UploadToken scoping the given fileID/chunk size,
// using a RegisteredClaims shape (Issuer/Subject/IssuedAt/ExpiresAt set,
// signed with HS256).
func (s *TokenSigner) Issue(fileID string, negotiatedChunkSize int64) (string, error) {
	now := time.Now()
	claims := &Claims{
		FileID:              fileID,
		NegotiatedChunkSize: negotiatedChunkSize,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.Issuer,
			Subject:   fileID,
			ID:        fileID,
			Audience:  []string{"upload"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign upload token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer UploadToken, returning its claims
// to the caller instead of stashing them on a gin.Context, since the
// upload service verifies tokens inline in each of its methods rather than
// in HTTP middleware.
func (s *TokenSigner) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, xerr.NewCodeError(xerr.TokenInvalidCode, xerr.ErrTokenInvalid)
	}
	return claims, nil
}
