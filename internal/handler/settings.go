package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/shop-admin/internal/access"
	"github.com/mmeshcher/shop-admin/internal/gating"
	"github.com/mmeshcher/shop-admin/internal/model"
	"github.com/mmeshcher/shop-admin/internal/payments"
	"github.com/mmeshcher/shop-admin/internal/repository"
	"github.com/mmeshcher/shop-admin/internal/validation"
)

type settingsView struct {
	chrome
	Steps []gating.Step `json:"steps"`
}

// Settings показывает разделы настроек с отметками о заполненности.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	s, _ := access.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, settingsView{chrome: h.navChrome(r), Steps: gating.Checklist(s)})
}

type profileView struct {
	chrome
	Email           string          `json:"email"`
	Username        string          `json:"username"`
	Address         string          `json:"address"`
	ProfileImageURL *string         `json:"profileImageURL"`
	Category        *model.Category `json:"category"`
}

func (h *Handler) profileView(r *http.Request, s *model.Session) profileView {
	return profileView{
		chrome:          h.navChrome(r),
		Email:           s.Email,
		Username:        s.Username,
		Address:         s.AddressOrEmpty(),
		ProfileImageURL: s.ProfileImageURL,
		Category:        s.Category,
	}
}

// Profile показывает данные профиля магазина.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	s, _ := access.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.profileView(r, s))
}

type profileRequest struct {
	Username    string `json:"username"`
	ShopName    string `json:"shopName"`
	Address     string `json:"address"`
	ImageBase64 string `json:"imageBase64"`
}

// UpdateProfile сохраняет данные профиля магазина.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	upd := model.ProfileUpdate{
		Username:  validation.NormalizeUsername(req.Username),
		ShopName:  strings.TrimSpace(req.ShopName),
		Address:   strings.TrimSpace(req.Address),
		ImageData: req.ImageBase64,
	}
	if upd.Username == "" || upd.ShopName == "" {
		writeMessage(w, http.StatusBadRequest, "Usuario y nombre de la tienda son obligatorios")
		return
	}

	// Обновление полное: расписание отправляется повторно, иначе сервер его сбросит
	if s, _ := access.SessionFromContext(r.Context()); s != nil && len(s.BusinessHours) > 0 {
		week := model.CloneWeek(s.BusinessHours)
		upd.BusinessHours = &week
	}

	if !h.applyUpdate(w, r, upd) {
		return
	}

	writeJSON(w, http.StatusOK, h.profileView(r, h.latest(r)))
}

// applyUpdate отправляет обновление и пишет ответ об ошибке, если оно не удалось.
func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, upd model.ProfileUpdate) bool {
	ok, err := h.sessions.UpdateProfile(detach(r), upd)
	if err != nil {
		writeMessage(w, http.StatusBadGateway, serverMessage(err, "No se pudieron guardar los cambios"))
		return false
	}
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Sesión no encontrada")
		return false
	}
	return true
}

type businessHoursView struct {
	chrome
	Days []model.DaySchedule `json:"days"`
}

func (h *Handler) writeBusinessHours(w http.ResponseWriter, r *http.Request, s *model.Session) {
	writeJSON(w, http.StatusOK, businessHoursView{chrome: h.navChrome(r), Days: model.WeekOrDefault(s)})
}

// BusinessHours показывает расписание работы магазина.
func (h *Handler) BusinessHours(w http.ResponseWriter, r *http.Request) {
	s, _ := access.SessionFromContext(r.Context())
	h.writeBusinessHours(w, r, s)
}

type businessHoursRequest struct {
	Days []model.DaySchedule `json:"days"`
}

// ReplaceBusinessHours сохраняет расписание целиком.
func (h *Handler) ReplaceBusinessHours(w http.ResponseWriter, r *http.Request) {
	var req businessHoursRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if msg, ok := validateWeek(req.Days); !ok {
		writeMessage(w, http.StatusUnprocessableEntity, msg)
		return
	}

	h.saveWeek(w, r, req.Days)
}

func validateWeek(week []model.DaySchedule) (string, bool) {
	days := model.DefaultWeek()
	if len(week) != len(days) {
		return "El horario debe tener siete días", false
	}
	for i, d := range week {
		if d.Name != days[i].Name {
			return "Los días deben ir de lunes a domingo", false
		}
		if !d.Active && len(d.TimeSlots) > 0 {
			return "Un día cerrado no puede tener horarios: " + d.Name, false
		}
		for _, slot := range d.TimeSlots {
			if !validation.IsValidTimeOfDay(slot.Start) || !validation.IsValidTimeOfDay(slot.End) {
				return "Horario inválido: " + d.Name, false
			}
		}
	}
	return "", true
}

// saveWeek отправляет полное обновление профиля с новым расписанием.
func (h *Handler) saveWeek(w http.ResponseWriter, r *http.Request, week []model.DaySchedule) {
	s, _ := access.SessionFromContext(r.Context())

	upd := model.BaseUpdate(s)
	upd.BusinessHours = &week
	if !h.applyUpdate(w, r, upd) {
		return
	}

	h.writeBusinessHours(w, r, h.latest(r))
}

func indexParam(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, false
	}
	return v, true
}

// writeWeekError переводит ошибки изменения расписания в HTTP-ответ.
func writeWeekError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrDayOutOfRange), errors.Is(err, model.ErrSlotOutOfRange):
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	case errors.Is(err, model.ErrUnknownSlotField):
		writeMessage(w, http.StatusBadRequest, "Campo desconocido")
	default:
		writeMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// ToggleDay открывает или закрывает день. Закрытие удаляет его интервалы.
func (h *Handler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	day, ok := indexParam(r, "day")
	if !ok {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	s, _ := access.SessionFromContext(r.Context())
	week, err := model.ToggleDay(model.WeekOrDefault(s), day)
	if err != nil {
		writeWeekError(w, err)
		return
	}
	h.saveWeek(w, r, week)
}

// AddTimeSlot добавляет дню интервал по умолчанию.
func (h *Handler) AddTimeSlot(w http.ResponseWriter, r *http.Request) {
	day, ok := indexParam(r, "day")
	if !ok {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	s, _ := access.SessionFromContext(r.Context())
	week := model.WeekOrDefault(s)
	if day >= 0 && day < len(week) && !week[day].Active {
		writeMessage(w, http.StatusUnprocessableEntity, "El día está cerrado")
		return
	}

	week, err := model.AddTimeSlot(week, day)
	if err != nil {
		writeWeekError(w, err)
		return
	}
	h.saveWeek(w, r, week)
}

type slotFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SetTimeSlot изменяет начало или конец интервала.
func (h *Handler) SetTimeSlot(w http.ResponseWriter, r *http.Request) {
	day, okDay := indexParam(r, "day")
	slot, okSlot := indexParam(r, "slot")
	if !okDay || !okSlot {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	var req slotFieldRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	if !validation.IsValidTimeOfDay(req.Value) {
		writeMessage(w, http.StatusUnprocessableEntity, "Horario inválido")
		return
	}

	s, _ := access.SessionFromContext(r.Context())
	week, err := model.SetTimeSlot(model.WeekOrDefault(s), day, slot, req.Field, req.Value)
	if err != nil {
		writeWeekError(w, err)
		return
	}
	h.saveWeek(w, r, week)
}

// RemoveTimeSlot удаляет интервал дня.
func (h *Handler) RemoveTimeSlot(w http.ResponseWriter, r *http.Request) {
	day, okDay := indexParam(r, "day")
	slot, okSlot := indexParam(r, "slot")
	if !okDay || !okSlot {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	s, _ := access.SessionFromContext(r.Context())
	week, err := model.RemoveTimeSlot(model.WeekOrDefault(s), day, slot)
	if err != nil {
		writeWeekError(w, err)
		return
	}
	h.saveWeek(w, r, week)
}

type notificationsRequest struct {
	Token string `json:"token"`
}

// RegisterNotifications сохраняет push-токен устройства продавца.
func (h *Handler) RegisterNotifications(w http.ResponseWriter, r *http.Request) {
	var req notificationsRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeMessage(w, http.StatusBadRequest, "Token vacío")
		return
	}

	if err := h.sessions.RegisterPushToken(detach(r), req.Token); err != nil {
		writeMessage(w, http.StatusBadGateway, serverMessage(err, "No se pudieron activar las notificaciones"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type paymentsView struct {
	chrome
	PaymentMethod        model.PaymentMethod `json:"paymentMethod"`
	WhatsAppNumber       *string             `json:"whatsappNumber"`
	MercadoPagoConnected bool                `json:"mercadoPagoConnected"`
}

func (h *Handler) writePayments(w http.ResponseWriter, r *http.Request, s *model.Session) {
	writeJSON(w, http.StatusOK, paymentsView{
		chrome:               h.navChrome(r),
		PaymentMethod:        s.PaymentMethod,
		WhatsAppNumber:       s.WhatsAppNumber,
		MercadoPagoConnected: s.HasPaymentAccount(),
	})
}

// Payments показывает способ приёма оплаты заказов.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	s, _ := access.SessionFromContext(r.Context())
	h.writePayments(w, r, s)
}

type whatsAppRequest struct {
	Number string `json:"number"`
}

// SetWhatsApp переключает приём заказов на WhatsApp с указанным номером.
func (h *Handler) SetWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req whatsAppRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if !validation.IsValidWhatsAppNumber(req.Number) {
		writeMessage(w, http.StatusUnprocessableEntity, "Número de WhatsApp inválido")
		return
	}

	s, _ := access.SessionFromContext(r.Context())
	method := model.PaymentMethodWhatsApp
	number := validation.NormalizePhone(req.Number)

	upd := model.BaseUpdate(s)
	upd.PaymentMethod = &method
	upd.WhatsAppNumber = &number
	if !h.applyUpdate(w, r, upd) {
		return
	}

	h.writePayments(w, r, h.latest(r))
}

type connectResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// ConnectMercadoPago возвращает адрес подключения аккаунта Mercado Pago.
func (h *Handler) ConnectMercadoPago(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.authorizer.AuthorizationURL()
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			writeMessage(w, http.StatusServiceUnavailable, "Mercado Pago no está configurado")
			return
		}
		h.logger.Error("mercado pago authorization url error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{URL: authURL, State: state})
}

const activityLimit = 20

type activityView struct {
	chrome
	Events []repository.SessionEvent `json:"events"`
}

// Activity показывает последние изменения сессии продавца. Без базы данных список пуст.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	view := activityView{chrome: h.navChrome(r), Events: []repository.SessionEvent{}}
	if h.activity == nil {
		writeJSON(w, http.StatusOK, view)
		return
	}

	s, _ := access.SessionFromContext(r.Context())
	events, err := h.activity.RecentEvents(r.Context(), s.ID, activityLimit)
	if err != nil {
		h.logger.Error("recent session events error", zap.Error(err), zap.Int64("merchantID", s.ID))
		writeMessage(w, http.StatusBadGateway, "No se pudo cargar la actividad")
		return
	}
	if len(events) > 0 {
		view.Events = events
	}
	writeJSON(w, http.StatusOK, view)
}
