// Package access решает, показывать ли защищённый раздел, и управляет напоминанием об оплате.
package access

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shop-admin/internal/gating"
	"github.com/mmeshcher/shop-admin/internal/model"
)

const (
	// SignInPath — раздел входа.
	SignInPath = "/signin"
	// PlanPath — раздел выбора тарифа и оплаты.
	PlanPath = "/plan"
)

// State описывает состояние аутентификации для одного запроса.
type State int

const (
	StatePending State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Decision — результат проверки доступа.
type Decision int

const (
	RenderLoading Decision = iota
	RedirectSignIn
	RedirectPlan
	RenderContent
)

func (d Decision) String() string {
	switch d {
	case RenderLoading:
		return "loading"
	case RedirectSignIn:
		return "redirect_signin"
	case RedirectPlan:
		return "redirect_plan"
	case RenderContent:
		return "render"
	}
	return "unknown"
}

// Decide применяет правила в порядке приоритета: загрузка, вход, блокировка за неуплату, показ.
// Для неавторизованных запросов условия оплаты не вычисляются.
func Decide(state State, s *model.Session, now time.Time) (Decision, gating.Snapshot) {
	switch state {
	case StatePending:
		return RenderLoading, gating.Snapshot{}
	case StateAuthenticated:
		if s == nil {
			return RedirectSignIn, gating.Snapshot{}
		}
	default:
		return RedirectSignIn, gating.Snapshot{}
	}

	snap := gating.Evaluate(s, now)
	if snap.LockedOut {
		return RedirectPlan, snap
	}
	return RenderContent, snap
}

// SessionSource описывает источник текущей сессии.
type SessionSource interface {
	Current() *model.Session
	Loading() bool
}

// Identifier определяет продавца, к которому привязан браузер.
type Identifier interface {
	MerchantID(r *http.Request) (int64, bool)
}

type contextKey string

const snapshotKey contextKey = "gatingSnapshot"
const sessionKey contextKey = "session"

// Controller проверяет доступ к защищённым разделам.
type Controller struct {
	source SessionSource
	ident  Identifier
	now    func() time.Time
	logger *zap.Logger
}

// NewController создаёт контроллер доступа. Если now равен nil, используется time.Now.
func NewController(source SessionSource, ident Identifier, now func() time.Time, logger *zap.Logger) *Controller {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{source: source, ident: ident, now: now, logger: logger}
}

// State определяет состояние аутентификации запроса и возвращает сессию, если она есть.
func (c *Controller) State(r *http.Request) (State, *model.Session) {
	if c.source.Loading() {
		return StatePending, nil
	}
	s := c.source.Current()
	if s == nil {
		return StateUnauthenticated, nil
	}
	id, ok := c.ident.MerchantID(r)
	if !ok || id != s.ID {
		return StateUnauthenticated, nil
	}
	return StateAuthenticated, s
}

// Middleware пропускает запрос к разделу только при разрешающем решении.
func (c *Controller) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, s := c.State(r)
		decision, snap := Decide(state, s, c.now())

		switch decision {
		case RenderLoading:
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "loading"})
		case RedirectSignIn:
			http.Redirect(w, r, SignInPath, http.StatusSeeOther)
		case RedirectPlan:
			c.logger.Info("merchant locked out, redirecting to plan",
				zap.Int64("merchantID", s.ID),
				zap.Time("cutoff", snap.CutoffDate),
				zap.String("path", r.URL.Path))
			http.Redirect(w, r, PlanPath, http.StatusSeeOther)
		default:
			ctx := context.WithValue(r.Context(), snapshotKey, snap)
			ctx = context.WithValue(ctx, sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

// SnapshotFromContext извлекает снимок условий доступа, вычисленный для запроса.
func SnapshotFromContext(ctx context.Context) (gating.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotKey).(gating.Snapshot)
	return snap, ok
}

// SessionFromContext извлекает сессию, по которой был разрешён запрос.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}
