package model

import "errors"

var (
	// ErrDayOutOfRange возвращается при обращении к несуществующему дню недели.
	ErrDayOutOfRange = errors.New("day index out of range")
	// ErrSlotOutOfRange возвращается при обращении к несуществующему интервалу.
	ErrSlotOutOfRange = errors.New("time slot index out of range")
	// ErrUnknownSlotField возвращается, если поле интервала не start и не end.
	ErrUnknownSlotField = errors.New("unknown time slot field")
)

// DefaultSlot добавляется при создании нового интервала.
var DefaultSlot = TimeSlot{Start: "09:00", End: "13:00"}

var weekdayNames = [7]string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

// DefaultWeek возвращает неделю с понедельника по воскресенье, все дни выключены.
func DefaultWeek() []DaySchedule {
	week := make([]DaySchedule, 0, len(weekdayNames))
	for _, name := range weekdayNames {
		week = append(week, DaySchedule{Name: name, TimeSlots: []TimeSlot{}})
	}
	return week
}

// WeekOrDefault возвращает расписание сессии или неделю по умолчанию, если оно не задано.
func WeekOrDefault(s *Session) []DaySchedule {
	if s == nil || len(s.BusinessHours) == 0 {
		return DefaultWeek()
	}
	return CloneWeek(s.BusinessHours)
}

// CloneWeek делает глубокую копию расписания.
func CloneWeek(week []DaySchedule) []DaySchedule {
	out := make([]DaySchedule, len(week))
	for i, d := range week {
		out[i] = DaySchedule{
			Name:      d.Name,
			Active:    d.Active,
			TimeSlots: append([]TimeSlot{}, d.TimeSlots...),
		}
	}
	return out
}

// ToggleDay включает или выключает день. При выключении интервалы дня очищаются.
func ToggleDay(week []DaySchedule, day int) ([]DaySchedule, error) {
	if day < 0 || day >= len(week) {
		return nil, ErrDayOutOfRange
	}
	out := CloneWeek(week)
	out[day].Active = !out[day].Active
	if !out[day].Active {
		out[day].TimeSlots = []TimeSlot{}
	}
	return out, nil
}

// AddTimeSlot добавляет дню интервал по умолчанию.
func AddTimeSlot(week []DaySchedule, day int) ([]DaySchedule, error) {
	if day < 0 || day >= len(week) {
		return nil, ErrDayOutOfRange
	}
	out := CloneWeek(week)
	out[day].TimeSlots = append(out[day].TimeSlots, DefaultSlot)
	return out, nil
}

// RemoveTimeSlot удаляет интервал дня.
func RemoveTimeSlot(week []DaySchedule, day, slot int) ([]DaySchedule, error) {
	if day < 0 || day >= len(week) {
		return nil, ErrDayOutOfRange
	}
	if slot < 0 || slot >= len(week[day].TimeSlots) {
		return nil, ErrSlotOutOfRange
	}
	out := CloneWeek(week)
	slots := out[day].TimeSlots
	out[day].TimeSlots = append(slots[:slot], slots[slot+1:]...)
	return out, nil
}

// SetTimeSlot изменяет начало или конец интервала. Порядок start/end не проверяется.
func SetTimeSlot(week []DaySchedule, day, slot int, field, value string) ([]DaySchedule, error) {
	if day < 0 || day >= len(week) {
		return nil, ErrDayOutOfRange
	}
	if slot < 0 || slot >= len(week[day].TimeSlots) {
		return nil, ErrSlotOutOfRange
	}
	out := CloneWeek(week)
	switch field {
	case "start":
		out[day].TimeSlots[slot].Start = value
	case "end":
		out[day].TimeSlots[slot].End = value
	default:
		return nil, ErrUnknownSlotField
	}
	return out, nil
}

// AnyActive сообщает, есть ли в неделе хотя бы один рабочий день.
func AnyActive(week []DaySchedule) bool {
	for _, d := range week {
		if d.Active {
			return true
		}
	}
	return false
}
