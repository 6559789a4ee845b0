// Package gating вычисляет производные условия доступа: блокировку за неуплату и полноту профиля.
// Все функции пакета чистые; вызывающий код передаёт текущее время явно.
package gating

import (
	"math"
	"time"

	"github.com/mmeshcher/shop-admin/internal/model"
)

// GracePeriodDays — число дней после даты платежа, в течение которых доступ сохраняется.
const GracePeriodDays = 5

// TrialWindow — период, в течение которого аккаунт считается новым.
const TrialWindow = 30 * 24 * time.Hour

const day = 24 * time.Hour

// Gate содержит результат расчёта платёжной блокировки.
type Gate struct {
	DueDate       time.Time
	CutoffDate    time.Time
	RemainingDays int
	LockedOut     bool
	PaymentDue    bool
}

// DueDate возвращает дату очередного платежа: nextPaymentDate или createdAt плюс один календарный месяц.
func DueDate(s *model.Session) time.Time {
	if s.NextPaymentDate != nil {
		return *s.NextPaymentDate
	}
	return s.CreatedAt.AddDate(0, 1, 0)
}

// PaymentGate рассчитывает дату отключения и признак блокировки.
// Блокировка наступает строго после даты отключения.
func PaymentGate(s *model.Session, now time.Time) Gate {
	due := DueDate(s)
	cutoff := due.AddDate(0, 0, GracePeriodDays)

	return Gate{
		DueDate:       due,
		CutoffDate:    cutoff,
		RemainingDays: int(math.Ceil(float64(cutoff.Sub(now)) / float64(day))),
		LockedOut:     now.After(cutoff),
		PaymentDue:    now.After(due),
	}
}

// ProfileComplete сообщает, заполнены ли изображение, рабочие часы, push-токен и платёжный аккаунт.
func ProfileComplete(s *model.Session) bool {
	if s == nil {
		return false
	}
	return hasImage(s) && model.AnyActive(s.BusinessHours) && hasPushToken(s) && s.HasPaymentAccount()
}

// Snapshot — производное, не сохраняемое состояние доступа для текущей сессии.
type Snapshot struct {
	LockedOut         bool      `json:"lockedOut"`
	PaymentDue        bool      `json:"paymentDue"`
	DueDate           time.Time `json:"dueDate"`
	CutoffDate        time.Time `json:"cutoffDate"`
	RemainingDays     int       `json:"remainingDays"`
	ProfileIncomplete bool      `json:"profileIncomplete"`
}

// Evaluate собирает полный снимок состояния доступа.
func Evaluate(s *model.Session, now time.Time) Snapshot {
	g := PaymentGate(s, now)
	return Snapshot{
		LockedOut:         g.LockedOut,
		PaymentDue:        g.PaymentDue,
		DueDate:           g.DueDate,
		CutoffDate:        g.CutoffDate,
		RemainingDays:     g.RemainingDays,
		ProfileIncomplete: !ProfileComplete(s),
	}
}

// InTrial сообщает, создан ли аккаунт в течение последних 30 дней.
func InTrial(s *model.Session, now time.Time) bool {
	return s.CreatedAt.After(now.Add(-TrialWindow))
}

// Step — шаг мастера заполнения профиля.
type Step struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Checklist возвращает шаги заполнения профиля с отметками выполнения.
func Checklist(s *model.Session) []Step {
	return []Step{
		{ID: 1, Title: "Perfil de la tienda", Done: s != nil && hasImage(s)},
		{ID: 2, Title: "Horarios", Done: s != nil && model.AnyActive(s.BusinessHours)},
		{ID: 3, Title: "Notificaciones", Done: s != nil && hasPushToken(s)},
		{ID: 4, Title: "Pagos", Done: s.HasPaymentAccount()},
	}
}

func hasImage(s *model.Session) bool {
	return s.ProfileImageURL != nil && *s.ProfileImageURL != ""
}

func hasPushToken(s *model.Session) bool {
	return s.FCMToken != nil && *s.FCMToken != ""
}
