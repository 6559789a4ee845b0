// Package handler содержит HTTP-обработчики консоли администратора магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shop-admin/internal/access"
	"github.com/mmeshcher/shop-admin/internal/gating"
	"github.com/mmeshcher/shop-admin/internal/model"
	"github.com/mmeshcher/shop-admin/internal/repository"
	"github.com/mmeshcher/shop-admin/internal/session"
	"github.com/mmeshcher/shop-admin/internal/shopapi"
	"github.com/mmeshcher/shop-admin/internal/validation"
)

// Sessions определяет контракт кэша сессии, используемый HTTP-обработчиками.
type Sessions interface {
	Current() *model.Session
	Loading() bool
	Login(ctx context.Context, email, password string) (*model.Session, error)
	SignUp() model.SignUpInfo
	SetSignUp(info model.SignUpInfo)
	Register(ctx context.Context) (*model.Session, error)
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (bool, error)
	RegisterPushToken(ctx context.Context, token string) error
	Logout(ctx context.Context) error
}

// Billing создаёт оплату подписки.
type Billing interface {
	CreateSubscription(ctx context.Context, planID string) (string, error)
}

// Notice — напоминание об оплате.
type Notice interface {
	Visible() bool
	Dismiss()
	Info() access.NoticeInfo
}

// ConsoleCookies привязывает браузер к продавцу.
type ConsoleCookies interface {
	SetConsoleCookie(w http.ResponseWriter, merchantID int64)
	ClearConsoleCookie(w http.ResponseWriter)
}

// Authorizer формирует адрес подключения аккаунта Mercado Pago.
type Authorizer interface {
	AuthorizationURL() (string, string, error)
}

// Activity отдаёт журнал изменений сессии продавца.
type Activity interface {
	RecentEvents(ctx context.Context, merchantID int64, limit int) ([]repository.SessionEvent, error)
}

// Dependencies содержит зависимости обработчиков. Activity может быть nil.
type Dependencies struct {
	Sessions   Sessions
	Billing    Billing
	Notice     Notice
	Cookies    ConsoleCookies
	Access     *access.Controller
	Authorizer Authorizer
	Activity   Activity
	Now        func() time.Time
	Logger     *zap.Logger
}

// Handler реализует HTTP-обработчики консоли.
type Handler struct {
	sessions   Sessions
	billing    Billing
	notice     Notice
	cookies    ConsoleCookies
	access     *access.Controller
	authorizer Authorizer
	activity   Activity
	now        func() time.Time
	logger     *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(d Dependencies) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		sessions:   d.Sessions,
		billing:    d.Billing,
		notice:     d.Notice,
		cookies:    d.Cookies,
		access:     d.Access,
		authorizer: d.Authorizer,
		activity:   d.Activity,
		now:        d.Now,
		logger:     d.Logger,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type redirectResponse struct {
	Redirect string `json:"redirect"`
}

type chrome struct {
	ShopName          string            `json:"shopName"`
	ProfileIncomplete bool              `json:"profileIncomplete"`
	PaymentNotice     access.NoticeInfo `json:"paymentNotice"`
}

func (h *Handler) navChrome(r *http.Request) chrome {
	c := chrome{PaymentNotice: h.notice.Info()}
	if s := h.latest(r); s != nil {
		c.ShopName = s.ShopName
		c.ProfileIncomplete = !gating.ProfileComplete(s)
	}
	return c
}

// latest возвращает сессию из кэша, а если её там уже нет, сессию, по которой был разрешён запрос.
func (h *Handler) latest(r *http.Request) *model.Session {
	if s := h.sessions.Current(); s != nil {
		return s
	}
	s, _ := access.SessionFromContext(r.Context())
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// serverMessage возвращает сообщение сервера API или общий текст для сбоев транспорта.
func serverMessage(err error, fallback string) string {
	var apiErr *shopapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// rejected сообщает, что сервер API отклонил запрос, а не сломался сам.
func rejected(err error) bool {
	var apiErr *shopapi.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// detach отвязывает операцию от запроса: ответ сервера обновит кэш, даже если клиент ушёл.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn выполняет вход продавца и привязывает браузер cookie консоли.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email y contraseña son obligatorios")
		return
	}

	sess, err := h.sessions.Login(detach(r), req.Email, req.Password)
	if err != nil {
		if rejected(err) {
			writeMessage(w, http.StatusUnauthorized, serverMessage(err, "Credenciales inválidas"))
			return
		}
		h.logger.Error("sign in error", zap.Error(err))
		writeMessage(w, http.StatusBadGateway, "No se pudo conectar con el servidor")
		return
	}

	h.cookies.SetConsoleCookie(w, sess.ID)
	writeJSON(w, http.StatusOK, redirectResponse{Redirect: "/home"})
}

type accountStepRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterAccount сохраняет первый шаг регистрации: email и пароль.
func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req accountStepRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email y contraseña son obligatorios")
		return
	}

	info := h.sessions.SignUp()
	info.Email = req.Email
	info.Password = req.Password
	h.sessions.SetSignUp(info)

	writeJSON(w, http.StatusOK, redirectResponse{Redirect: "/register/shop"})
}

type shopStepRequest struct {
	ShopName string         `json:"shopname"`
	Username string         `json:"username"`
	Address  string         `json:"address"`
	Category model.Category `json:"category"`
}

// RegisterShop сохраняет второй шаг регистрации и регистрирует магазин.
func (h *Handler) RegisterShop(w http.ResponseWriter, r *http.Request) {
	var req shopStepRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if req.Category != model.CategoryApparel && req.Category != model.CategoryFood {
		writeMessage(w, http.StatusUnprocessableEntity, "Seleccioná una categoría")
		return
	}

	info := h.sessions.SignUp()
	info.ShopName = strings.TrimSpace(req.ShopName)
	info.Username = validation.NormalizeUsername(req.Username)
	info.Address = strings.TrimSpace(req.Address)
	info.Category = req.Category
	h.sessions.SetSignUp(info)

	sess, err := h.sessions.Register(detach(r))
	if err != nil {
		if errors.Is(err, session.ErrIncompleteSignUp) {
			writeMessage(w, http.StatusBadRequest, "Faltan datos de registro")
			return
		}
		if rejected(err) {
			writeMessage(w, http.StatusConflict, serverMessage(err, "No se pudo registrar la tienda"))
			return
		}
		h.logger.Error("register shop error", zap.Error(err))
		writeMessage(w, http.StatusBadGateway, "No se pudo conectar con el servidor")
		return
	}

	h.cookies.SetConsoleCookie(w, sess.ID)
	writeJSON(w, http.StatusCreated, redirectResponse{Redirect: access.PlanPath})
}

// SignOut отвязывает браузер от продавца. Сессия на сервере не завершается.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Warn("logout error", zap.Error(err))
	}
	h.cookies.ClearConsoleCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Health сообщает о готовности консоли.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"loading": h.sessions.Loading(),
	})
}

type planView struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Price      string `json:"price"`
	PriceLabel string `json:"priceLabel"`
	Enabled    bool   `json:"enabled"`
}

type planPage struct {
	ShopName string          `json:"shopName"`
	Trial    bool            `json:"trial"`
	Gate     gating.Snapshot `json:"gate"`
	Plans    []planView      `json:"plans"`
}

// authenticated пропускает только привязанного продавца, без проверки блокировки за неуплату.
func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	state, s := h.access.State(r)
	switch state {
	case access.StatePending:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return nil, false
	case access.StateUnauthenticated:
		http.Redirect(w, r, access.SignInPath, http.StatusSeeOther)
		return nil, false
	}
	return s, true
}

// Plan показывает тарифы. Доступен и заблокированному продавцу.
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authenticated(w, r)
	if !ok {
		return
	}

	now := h.now()
	page := planPage{
		ShopName: s.ShopName,
		Trial:    gating.InTrial(s, now),
		Gate:     gating.Evaluate(s, now),
	}
	for _, p := range model.Plans() {
		page.Plans = append(page.Plans, planView{
			ID:         p.ID,
			Label:      p.Label,
			Price:      p.MonthlyPrice.StringFixed(0),
			PriceLabel: p.PriceLabel(),
			Enabled:    p.Enabled,
		})
	}

	writeJSON(w, http.StatusOK, page)
}

type subscribeRequest struct {
	PlanID string `json:"planId"`
}

type subscribeResponse struct {
	InitPoint string `json:"initPoint"`
}

// Subscribe создаёт оплату выбранного тарифа и возвращает адрес оплаты.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.authenticated(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	plan, found := model.FindPlan(req.PlanID)
	if !found {
		writeMessage(w, http.StatusBadRequest, "Plan desconocido")
		return
	}
	if !plan.Enabled {
		writeMessage(w, http.StatusUnprocessableEntity, "Plan no disponible")
		return
	}

	initPoint, err := h.billing.CreateSubscription(detach(r), plan.ID)
	if err != nil {
		h.logger.Error("create subscription error", zap.Error(err), zap.Int64("merchantID", s.ID), zap.String("plan", plan.ID))
		writeMessage(w, http.StatusBadGateway, serverMessage(err, "No se pudo iniciar el pago"))
		return
	}

	writeJSON(w, http.StatusOK, subscribeResponse{InitPoint: initPoint})
}

type homeView struct {
	chrome
	Username   string          `json:"username"`
	SizedStock bool            `json:"sizedStock"`
	Gate       gating.Snapshot `json:"gate"`
}

// Home показывает главную страницу консоли.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	s, _ := access.SessionFromContext(r.Context())
	snap, _ := access.SnapshotFromContext(r.Context())

	view := homeView{
		chrome:   h.navChrome(r),
		Username: s.Username,
		Gate:     snap,
	}
	if s.Category != nil {
		view.SizedStock = s.Category.SizedStock()
	}

	writeJSON(w, http.StatusOK, view)
}

// PaymentNotice возвращает состояние напоминания об оплате.
func (h *Handler) PaymentNotice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notice.Info())
}

// DismissNotice скрывает напоминание об оплате до следующей проверки.
func (h *Handler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	h.notice.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

type checklistView struct {
	chrome
	Complete bool          `json:"complete"`
	Steps    []gating.Step `json:"steps"`
}

// CompleteProfile показывает шаги настройки магазина.
func (h *Handler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	s, _ := access.SessionFromContext(r.Context())

	writeJSON(w, http.StatusOK, checklistView{
		chrome:   h.navChrome(r),
		Complete: gating.ProfileComplete(s),
		Steps:    gating.Checklist(s),
	})
}
