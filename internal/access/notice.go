package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shop-admin/internal/gating"
	"github.com/mmeshcher/shop-admin/internal/model"
)

// DefaultCheckInterval — период повторной проверки напоминания об оплате.
const DefaultCheckInterval = time.Hour

// Subscriber — источник сессии с уведомлениями об изменениях.
type Subscriber interface {
	SessionSource
	Subscribe(fn func(*model.Session)) func()
}

// Notice — закрываемое напоминание «скоро оплата». Не блокирует доступ.
// Закрытие действует только до следующей проверки.
type Notice struct {
	source   Subscriber
	now      func() time.Time
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	visible bool

	unsubscribe func()
}

// NewNotice создаёт напоминание и подписывает его на изменения сессии.
func NewNotice(source Subscriber, interval time.Duration, now func() time.Time, logger *zap.Logger) *Notice {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Notice{
		source:   source,
		now:      now,
		interval: interval,
		logger:   logger,
	}
	n.unsubscribe = source.Subscribe(func(s *model.Session) {
		n.check(s)
	})
	n.check(source.Current())
	return n
}

// Close отписывает напоминание от изменений сессии.
func (n *Notice) Close() {
	n.unsubscribe()
}

// Check пересчитывает видимость по текущей сессии.
func (n *Notice) Check() {
	n.check(n.source.Current())
}

func (n *Notice) check(s *model.Session) {
	due := false
	if s != nil {
		due = gating.PaymentGate(s, n.now()).PaymentDue
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if due && !n.visible {
		n.logger.Info("payment due, showing notice", zap.Int64("merchantID", s.ID))
	}
	n.visible = due
}

// Visible сообщает, показывается ли напоминание.
func (n *Notice) Visible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visible
}

// Dismiss скрывает напоминание до следующей проверки.
func (n *Notice) Dismiss() {
	n.mu.Lock()
	n.visible = false
	n.mu.Unlock()
}

// Run повторяет проверку с заданным периодом до отмены контекста.
func (n *Notice) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Check()
		}
	}
}

// NoticeInfo — данные для отображения напоминания.
type NoticeInfo struct {
	Visible       bool   `json:"visible"`
	CutoffDate    string `json:"cutoffDate,omitempty"`
	RemainingDays int    `json:"remainingDays"`
}

// Info возвращает данные напоминания для текущей сессии.
func (n *Notice) Info() NoticeInfo {
	info := NoticeInfo{Visible: n.Visible()}
	s := n.source.Current()
	if s == nil {
		return info
	}
	g := gating.PaymentGate(s, n.now())
	info.CutoffDate = FormatLongDate(g.CutoffDate)
	info.RemainingDays = g.RemainingDays
	return info
}

var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatLongDate форматирует дату как «15 de febrero de 2024».
func FormatLongDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}
