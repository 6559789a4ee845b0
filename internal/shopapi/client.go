// Package shopapi предоставляет клиент удалённого API магазина (аутентификация, профиль, платежи).
package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/mmeshcher/shop-admin/internal/model"
)

const defaultTimeout = 10 * time.Second

// APIError описывает отказ сервера с сообщением из тела ответа.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ErrEmptyUser возвращается, если успешный ответ не содержит продавца.
var ErrEmptyUser = errors.New("response contains no user")

// Client инкапсулирует HTTP-взаимодействие с API магазина.
// Учётные данные хранятся только в cookie jar клиента.
type Client struct {
	baseURL    string
	httpClient *http.Client
	loc        *time.Location
}

// Option настраивает клиент.
type Option func(*Client)

// WithLocation задаёт часовой пояс, в который переводятся даты из ответов.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient создаёт клиент API магазина по указанному адресу.
func NewClient(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)

	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		loc: time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login отправляет учётные данные и возвращает продавца.
func (c *Client) Login(ctx context.Context, email, password string) (*model.Session, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.requireUser(resp)
}

// Register отправляет данные регистрации, накопленные мастером.
func (c *Client) Register(ctx context.Context, info model.SignUpInfo) (*model.Session, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", info, &resp); err != nil {
		return nil, err
	}
	return c.requireUser(resp)
}

// Profile запрашивает текущего продавца. Возвращает nil без ошибки, если сессии на сервере нет.
func (c *Client) Profile(ctx context.Context) (*model.Session, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	rec, err := resp.first()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.toSession(c.loc)
}

type updateRequest struct {
	ID             int64                `json:"id"`
	Username       string               `json:"username"`
	ShopName       string               `json:"shopname"`
	Address        string               `json:"address"`
	ImageBase64    string               `json:"imageBase64"`
	BusinessHours  *[]model.DaySchedule `json:"businessHours,omitempty"`
	PaymentMethod  *model.PaymentMethod `json:"paymentMethod,omitempty"`
	WhatsAppNumber *string              `json:"whatsappNumber,omitempty"`
}

// Update выполняет полное обновление профиля продавца.
func (c *Client) Update(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.Session, error) {
	req := updateRequest{
		ID:             id,
		Username:       upd.Username,
		ShopName:       upd.ShopName,
		Address:        upd.Address,
		ImageBase64:    upd.ImageData,
		BusinessHours:  upd.BusinessHours,
		PaymentMethod:  upd.PaymentMethod,
		WhatsAppNumber: upd.WhatsAppNumber,
	}

	var resp userResponse
	if err := c.do(ctx, http.MethodPut, "/auth/update", req, &resp); err != nil {
		return nil, err
	}
	return c.requireUser(resp)
}

type pushTokenRequest struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

// UpdatePushToken сохраняет токен push-уведомлений устройства.
func (c *Client) UpdatePushToken(ctx context.Context, id int64, token string) error {
	return c.do(ctx, http.MethodPut, "/auth/fcm-token", pushTokenRequest{ID: id, Token: token}, nil)
}

type subscriptionRequest struct {
	PlanID string `json:"planId"`
}

type subscriptionResponse struct {
	Preference struct {
		InitPoint string `json:"init_point"`
	} `json:"preference"`
}

// CreateSubscription создаёт предпочтение оплаты подписки и возвращает адрес оплаты.
func (c *Client) CreateSubscription(ctx context.Context, planID string) (string, error) {
	var resp subscriptionResponse
	if err := c.do(ctx, http.MethodPost, "/payments/create-subscription", subscriptionRequest{PlanID: planID}, &resp); err != nil {
		return "", err
	}
	if resp.Preference.InitPoint == "" {
		return "", errors.New("response contains no init point")
	}
	return resp.Preference.InitPoint, nil
}

func (c *Client) requireUser(resp userResponse) (*model.Session, error) {
	rec, err := resp.first()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrEmptyUser
	}
	return rec.toSession(c.loc)
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("shop api client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && eb.Message != "" {
			apiErr.Message = eb.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
