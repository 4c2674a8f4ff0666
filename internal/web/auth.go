package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chime/internal/reminder"
	"chime/internal/store"
	logx "chime/pkg/logx"
)

// AuthConfig holds the HS256 signing secret and token lifetime.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("hash password", logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	u := &reminder.User{Username: req.Username, PasswordHash: string(hash)}
	if err := s.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			s.respondError(w, http.StatusConflict, "username already taken")
			return
		}
		s.log.Error("create user", logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.log.Info("user registered", logx.Int64("user_id", u.ID), logx.String("username", u.Username))
	s.issueToken(w, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	u, err := s.users.UserByName(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("lookup user", logx.Err(err))
		}
		// A burned bcrypt round keeps the timing of unknown-user and
		// wrong-password responses close.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(req.Password))
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.issueToken(w, u)
}

func (s *Server) issueToken(w http.ResponseWriter, u *reminder.User) {
	now := time.Now()
	exp := now.Add(s.auth.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(u.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.auth.Secret))
	if err != nil {
		s.log.Error("sign token", logx.Err(err))
		s.respondError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	s.respondJSON(w, http.StatusOK, tokenResponse{Token: tok, ExpiresAt: exp.Unix()})
}

// verifyToken parses and validates an HS256 token, returning the user id
// from the subject claim.
func (s *Server) verifyToken(raw string) (int64, error) {
	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.auth.Secret), nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid {
		return 0, jwt.ErrTokenInvalidClaims
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, jwt.ErrTokenInvalidSubject
	}
	return id, nil
}
