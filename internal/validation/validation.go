// Package validation содержит функции проверки и нормализации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidTimeOfDay проверяет время в 24-часовом формате HH:MM.
func IsValidTimeOfDay(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	hours := int(s[0]-'0')*10 + int(s[1]-'0')
	minutes := int(s[3]-'0')*10 + int(s[4]-'0')

	return hours < 24 && minutes < 60
}

// IsValidWhatsAppNumber проверяет номер в международном формате: "+", затем от 8 до 15 цифр.
// Пробелы и дефисы допускаются и игнорируются.
func IsValidWhatsAppNumber(number string) bool {
	number = NormalizePhone(number)
	if !strings.HasPrefix(number, "+") {
		return false
	}

	digits := number[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return false
	}
	for _, ch := range digits {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// NormalizePhone удаляет из номера пробелы и дефисы.
func NormalizePhone(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(number))
}

// NormalizeUsername удаляет из имени пользователя все пробельные символы.
func NormalizeUsername(username string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, username)
}
