package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// DefaultTokenExpiry is used until SetJWTExpiry is called
const DefaultTokenExpiry = 24 * time.Hour

var (
	jwtSecret string
	jwtExpiry = DefaultTokenExpiry
)

func SetJWTSecret(secret string) {
	jwtSecret = secret
}

// SetJWTExpiry sets the lifetime of newly issued tokens
func SetJWTExpiry(expiry time.Duration) {
	if expiry > 0 {
		jwtExpiry = expiry
	}
}

func getJWTSecret() string {
	if jwtSecret == "" {
		panic("JWT secret is not set in config")
	}
	return jwtSecret
}

// ExtractNameFromEmail returns the local part of an email address
func ExtractNameFromEmail(email string) string {
	name, _, found := strings.Cut(email, "@")
	if !found || name == "" {
		return email
	}
	return name
}

// Password Hashing Functions
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Claims are carried by both member and administrator tokens. Role is only
// set on administrator tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token was issued to an administrator
func (c *Claims) IsAdmin() bool {
	return c.Role != ""
}

// GenerateJWTToken issues a member token for a profile
func GenerateJWTToken(userID, email string) (string, error) {
	return signClaims(userID, email, "")
}

// GenerateAdminToken issues an administrator token carrying the admin role
func GenerateAdminToken(adminID, email, role string) (string, error) {
	if role == "" {
		return "", fmt.Errorf("admin token requires a role")
	}
	return signClaims(adminID, email, role)
}

func signClaims(id, email, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: id,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(getJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signedToken, nil
}

func ParseJWTToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	jwtSecret := []byte(getJWTSecret())

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" {
		claims.Email = claims.Subject
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer x" header
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GenerateSecretHash computes the Cognito SECRET_HASH parameter
func GenerateSecretHash(username, clientID, clientSecret string) string {
	key := []byte(clientSecret)
	message := username + clientID

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
