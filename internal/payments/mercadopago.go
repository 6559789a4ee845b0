// Package payments формирует адреса подключения аккаунта Mercado Pago.
package payments

import (
	"errors"
	"net/url"

	"github.com/google/uuid"
)

const authorizationEndpoint = "https://auth.mercadopago.com/authorization"

// ErrNotConfigured возвращается, если не задан идентификатор приложения.
var ErrNotConfigured = errors.New("mercado pago client id is not configured")

// OAuth описывает приложение Mercado Pago, через которое продавец подключает свой аккаунт.
type OAuth struct {
	ClientID    string
	RedirectURI string
}

// AuthorizationURL возвращает адрес авторизации и сгенерированный параметр state.
func (o OAuth) AuthorizationURL() (string, string, error) {
	if o.ClientID == "" {
		return "", "", ErrNotConfigured
	}

	state := uuid.NewString()

	q := url.Values{}
	q.Set("client_id", o.ClientID)
	q.Set("response_type", "code")
	q.Set("platform_id", "mp")
	q.Set("state", state)
	if o.RedirectURI != "" {
		q.Set("redirect_uri", o.RedirectURI)
	}

	return authorizationEndpoint + "?" + q.Encode(), state, nil
}
