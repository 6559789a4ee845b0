package shopapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmeshcher/shop-admin/internal/model"
)

// userResponse покрывает оба варианта ответа: {user:[record]} и {user:record}.
type userResponse struct {
	User json.RawMessage `json:"user"`
}

func (r userResponse) first() (*userRecord, error) {
	raw := bytes.TrimSpace(r.User)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var list []userRecord
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode user list: %w", err)
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &rec, nil
}

type userRecord struct {
	ID              int64               `json:"id"`
	Email           string              `json:"email"`
	Username        string              `json:"username"`
	ShopName        string              `json:"shopname"`
	ProfileImageURL *string             `json:"profileImageURL"`
	Address         *string             `json:"address"`
	FCMToken        *string             `json:"fcmToken"`
	CreatedAt       string              `json:"createdAt"`
	Plan            *string             `json:"plan"`
	Category        *string             `json:"category"`
	LastPaymentDate *string             `json:"lastPaymentDate"`
	NextPaymentDate *string             `json:"nextPaymentDate"`
	MPAccessToken   *string             `json:"mp_access_token"`
	MPRefreshToken  *string             `json:"mp_refresh_token"`
	MPTokenExpires  *int64              `json:"mp_token_expires"`
	ConnectedMP     *int64              `json:"connected_mp"`
	BusinessHours   []model.DaySchedule `json:"businessHours"`
	PaymentMethod   *string             `json:"paymentMethod"`
	WhatsAppNumber  *string             `json:"whatsappNumber"`
}

func (r *userRecord) toSession(loc *time.Location) (*model.Session, error) {
	createdAt, err := parseTime(r.CreatedAt, loc)
	if err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	lastPayment, err := parseOptionalTime(r.LastPaymentDate, loc)
	if err != nil {
		return nil, fmt.Errorf("lastPaymentDate: %w", err)
	}
	nextPayment, err := parseOptionalTime(r.NextPaymentDate, loc)
	if err != nil {
		return nil, fmt.Errorf("nextPaymentDate: %w", err)
	}

	s := &model.Session{
		ID:              r.ID,
		Email:           r.Email,
		Username:        r.Username,
		ShopName:        r.ShopName,
		Address:         r.Address,
		CreatedAt:       createdAt,
		LastPaymentDate: lastPayment,
		NextPaymentDate: nextPayment,
		Plan:            r.Plan,
		MPAccessToken:   r.MPAccessToken,
		MPRefreshToken:  r.MPRefreshToken,
		MPTokenExpires:  r.MPTokenExpires,
		ConnectedMP:     r.ConnectedMP,
		WhatsAppNumber:  r.WhatsAppNumber,
		BusinessHours:   r.BusinessHours,
		ProfileImageURL: r.ProfileImageURL,
		FCMToken:        r.FCMToken,
	}

	if r.PaymentMethod != nil {
		m := model.PaymentMethod(*r.PaymentMethod)
		if m.Valid() {
			s.PaymentMethod = m
		}
	}
	if r.Category != nil && *r.Category != "" {
		c := model.Category(*r.Category)
		s.Category = &c
	}
	for i := range s.BusinessHours {
		if s.BusinessHours[i].TimeSlots == nil {
			s.BusinessHours[i].TimeSlots = []model.TimeSlot{}
		}
	}

	return s, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTime разбирает ISO-8601. Дата без времени считается полуночью UTC,
// дата со временем без смещения считается местным временем loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timeLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseOptionalTime(s *string, loc *time.Location) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
