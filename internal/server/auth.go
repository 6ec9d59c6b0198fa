package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type identityKey struct{}

// identity - пользователь из токена.
type identity struct {
	UserID   string
	Username string
}

func userIDFor(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("feedsync:"+username)).String()
}

func generateToken(secret []byte, username string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userIDFor(username),
		"username": username,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

func validateJWT(secret []byte, tokenString string) (identity, error) {
	if tokenString == "" {
		return identity{}, errors.New("пустой токен")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return identity{}, errors.New("неверные claims")
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return identity{}, errors.New("в токене нет user_id")
	}
	username, _ := claims["username"].(string)
	return identity{UserID: userID, Username: username}, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return r.URL.Query().Get("token")
}

// authenticate кладет identity в контекст. Без токена запрос пропускается
// только если required == false.
func (s *Server) authenticate(required bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" && !required {
			next(w, r)
			return
		}
		id, err := validateJWT([]byte(s.cfg.Auth.Secret), raw)
		if err != nil {
			key := msgUnauthorized
			if errors.Is(err, jwt.ErrTokenExpired) {
				key = msgTokenExpired
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": s.msg(key)})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	}
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticate(true, next)
}

func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticate(false, next)
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	token, err := generateToken([]byte(s.cfg.Auth.Secret), strings.TrimSpace(req.Username), s.cfg.Auth.TokenTTL)
	if err != nil {
		http.Error(w, "Ошибка генерации токена", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
