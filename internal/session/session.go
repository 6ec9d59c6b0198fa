package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoIssuer = errors.New("no token issuer configured")

// Issuer выпускает новый токен доступа.
type Issuer interface {
	Issue(ctx context.Context) (string, error)
}

// Guard хранит токен сессии и обновляет его, когда срок подходит к концу
// или сервер ответил 401.
type Guard struct {
	mu     sync.Mutex
	token  string
	issuer Issuer
	skew   time.Duration
	now    func() time.Time
}

func NewGuard(issuer Issuer, skew time.Duration) *Guard {
	return &Guard{issuer: issuer, skew: skew, now: time.Now}
}

// Set задает токен вручную, например сохраненный ранее.
func (g *Guard) Set(token string) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

// Token возвращает действующий токен, при необходимости выпуская новый.
func (g *Guard) Token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && !g.expiring(g.token) {
		return g.token, nil
	}
	if err := g.refreshLocked(ctx); err != nil {
		return "", err
	}
	return g.token, nil
}

// ShouldRefresh сообщает, что токена нет или его срок истекает.
func (g *Guard) ShouldRefresh() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token == "" || g.expiring(g.token)
}

// Refresh выпускает новый токен независимо от срока текущего.
func (g *Guard) Refresh(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshLocked(ctx)
}

func (g *Guard) refreshLocked(ctx context.Context) error {
	if g.issuer == nil {
		return ErrNoIssuer
	}
	token, err := g.issuer.Issue(ctx)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	g.token = token
	return nil
}

// expiring читает exp без проверки подписи: ключа у клиента нет,
// подпись проверяет сервер.
func (g *Guard) expiring(token string) bool {
	exp, ok := Expiry(token)
	if !ok {
		return false
	}
	return !g.now().Add(g.skew).Before(exp)
}

// Expiry возвращает срок действия JWT. ok == false, если токен не JWT или exp нет.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// HTTPIssuer получает токен у сервиса: POST /token {"username": ...} -> {"token": ...}.
type HTTPIssuer struct {
	baseURL    string
	username   string
	httpClient http.Client
}

func NewHTTPIssuer(baseURL, username string, timeout time.Duration) *HTTPIssuer {
	return &HTTPIssuer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		httpClient: http.Client{Timeout: timeout},
	}
}

func (i *HTTPIssuer) Issue(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"username": i.username})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", fmt.Errorf("token endpoint: %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Token string `json:"token"`
		Data  struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if out.Token == "" {
		out.Token = out.Data.Token
	}
	if out.Token == "" {
		return "", errors.New("token endpoint returned empty token")
	}
	return out.Token, nil
}
