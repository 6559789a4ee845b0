// Package model содержит доменные сущности консоли администратора магазина.
package model

import (
	"strings"
	"time"
)

// PaymentMethod описывает способ приёма оплаты заказов магазина.
type PaymentMethod string

const (
	PaymentMethodUnset       PaymentMethod = ""
	PaymentMethodMercadoPago PaymentMethod = "mercadopago"
	PaymentMethodWhatsApp    PaymentMethod = "whatsapp"
)

// Valid сообщает, известен ли способ оплаты.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUnset, PaymentMethodMercadoPago, PaymentMethodWhatsApp:
		return true
	}
	return false
}

// Category описывает категорию магазина.
type Category string

const (
	CategoryApparel Category = "ropa"
	CategoryFood    Category = "comida"
)

// SizedStock сообщает, ведётся ли остаток по размерам (только для одежды).
func (c Category) SizedStock() bool {
	return c == CategoryApparel
}

// TimeSlot описывает интервал работы в формате HH:MM.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule описывает расписание одного дня недели.
type DaySchedule struct {
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	TimeSlots []TimeSlot `json:"timeSlots"`
}

// Session содержит закэшированные данные авторизованного продавца.
// После публикации в кэше значение не изменяется, любое обновление заменяет его целиком.
type Session struct {
	ID       int64
	Email    string
	Username string
	ShopName string
	Address  *string

	CreatedAt       time.Time
	LastPaymentDate *time.Time
	NextPaymentDate *time.Time
	Plan            *string

	MPAccessToken  *string
	MPRefreshToken *string
	MPTokenExpires *int64
	ConnectedMP    *int64
	PaymentMethod  PaymentMethod
	WhatsAppNumber *string

	BusinessHours   []DaySchedule
	ProfileImageURL *string
	FCMToken        *string
	Category        *Category
}

// AddressOrEmpty возвращает адрес магазина или пустую строку.
func (s *Session) AddressOrEmpty() string {
	if s == nil || s.Address == nil {
		return ""
	}
	return *s.Address
}

// HasPaymentAccount сообщает, подключён ли аккаунт платёжной системы.
func (s *Session) HasPaymentAccount() bool {
	return s != nil && nonEmpty(s.MPAccessToken)
}

// SignUpInfo накапливает данные регистрации между шагами мастера.
type SignUpInfo struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	ShopName string   `json:"shopname"`
	Username string   `json:"username"`
	Address  string   `json:"address"`
	Category Category `json:"category"`
}

// Missing возвращает список обязательных полей, которые ещё не заполнены.
func (i SignUpInfo) Missing() []string {
	var missing []string
	if strings.TrimSpace(i.Email) == "" {
		missing = append(missing, "email")
	}
	if i.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(i.ShopName) == "" {
		missing = append(missing, "shopname")
	}
	if strings.TrimSpace(i.Username) == "" {
		missing = append(missing, "username")
	}
	if i.Category == "" {
		missing = append(missing, "category")
	}
	return missing
}

// ProfileUpdate описывает полное обновление профиля.
// Необязательные поля, равные nil, не передаются на сервер.
type ProfileUpdate struct {
	Username  string
	ShopName  string
	Address   string
	ImageData string

	BusinessHours  *[]DaySchedule
	PaymentMethod  *PaymentMethod
	WhatsAppNumber *string
}

// BaseUpdate собирает обновление из текущих значений сессии без изменения профиля.
func BaseUpdate(s *Session) ProfileUpdate {
	return ProfileUpdate{
		Username: s.Username,
		ShopName: s.ShopName,
		Address:  s.AddressOrEmpty(),
	}
}

func nonEmpty(v *string) bool {
	return v != nil && *v != ""
}
