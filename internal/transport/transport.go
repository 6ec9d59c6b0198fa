package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/normalize"
)

const maxBody = 10 << 20

var messageKeys = []string{"message", "error", "msg", "Message", "Error", "detail"}

// TokenSource выдает токен доступа для заголовка Authorization.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client - HTTP-клиент удаленного сервиса. Любой ответ сводится к models.Envelope.
type Client struct {
	baseURL    string
	httpClient http.Client
	tokens     TokenSource
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// Do выполняет запрос. Ошибка возвращается только если ответа не было.
func (c *Client) Do(ctx context.Context, req models.Request) (models.Envelope, error) {
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return models.Envelope{}, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			log.Printf("Не удалось получить токен: %v", err)
		} else if token != "" {
			hreq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return models.Envelope{}, fmt.Errorf("read body: %w", err)
	}
	return Decode(resp.StatusCode, raw), nil
}

// Decode собирает конверт из статуса и тела ответа.
// Тело без поля success оборачивается как {success: 2xx, data: body},
// сообщение берется из message, error или msg.
func Decode(status int, raw []byte) models.Envelope {
	env := models.Envelope{Status: status}
	ok := status >= 200 && status < 300

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		env.Success = ok
		return env
	}

	var body any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		// не JSON: текст ошибки становится сообщением
		env.Success = ok
		if ok {
			env.Data = string(trimmed)
		} else {
			env.Message = string(trimmed)
		}
		return env
	}

	obj, isObj := body.(map[string]any)
	if !isObj {
		env.Success = ok
		env.Data = body
		return env
	}

	success, hasSuccess := obj["success"].(bool)
	if !hasSuccess {
		env.Success = ok
		env.Data = obj
		if !ok {
			env.Message = messageOf(obj)
		}
		return env
	}

	env.Success = success
	if data, has := obj["data"]; has {
		env.Data = data
	} else {
		env.Data = obj
	}
	env.Message = messageOf(obj)
	if ok {
		// некоторые ответы приходят с 200 и настоящим статусом в теле
		if s, has := normalize.Int(obj, []string{"status", "statusCode", "code"}); has && s >= 100 && s < 600 {
			env.Status = s
		}
	}
	return env
}

func messageOf(obj map[string]any) string {
	for _, k := range messageKeys {
		switch v := obj[k].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case map[string]any:
			if m := messageOf(v); m != "" {
				return m
			}
		}
	}
	return ""
}
