// Package middleware содержит HTTP middleware консоли администратора магазина.
package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	consoleCookieName = "console_token"
	consoleCookieTTL  = 30 * 24 * time.Hour
)

var hkdfInfoConsoleCookie = []byte("shop-admin.console-cookie.v1")

// ConsoleAuth привязывает браузер к продавцу подписанным cookie.
type ConsoleAuth struct {
	secretKey []byte
}

// NewConsoleAuth создаёт ConsoleAuth. Ключ подписи выводится из секрета через HKDF.
// При пустом секрете используется случайный ключ, и cookie перестают быть
// действительными после перезапуска.
func NewConsoleAuth(secret string) *ConsoleAuth {
	if secret == "" {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			return &ConsoleAuth{secretKey: randomKey}
		}
		secret = "shop-admin-console"
	}

	return &ConsoleAuth{
		secretKey: deriveKey([]byte(secret)),
	}
}

func deriveKey(secret []byte) []byte {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfoConsoleCookie), key); err != nil {
		return secret
	}
	return key
}

// MerchantID возвращает идентификатор продавца из cookie, если подпись верна.
func (a *ConsoleAuth) MerchantID(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(consoleCookieName)
	if err != nil {
		return 0, false
	}
	return a.parseCookie(cookie.Value)
}

// SetConsoleCookie устанавливает cookie консоли для указанного продавца.
func (a *ConsoleAuth) SetConsoleCookie(w http.ResponseWriter, merchantID int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     consoleCookieName,
		Value:    a.sign(strconv.FormatInt(merchantID, 10)),
		Path:     "/",
		Expires:  time.Now().Add(consoleCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearConsoleCookie удаляет cookie консоли в браузере.
func (a *ConsoleAuth) ClearConsoleCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     consoleCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *ConsoleAuth) sign(idStr string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(idStr))
	return idStr + "." + hex.EncodeToString(mac.Sum(nil))
}

func (a *ConsoleAuth) parseCookie(value string) (int64, bool) {
	idStr, signature, found := strings.Cut(value, ".")
	if !found || idStr == "" {
		return 0, false
	}

	_, expected, _ := strings.Cut(a.sign(idStr), ".")
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return 0, false
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}
