package model

import "github.com/shopspring/decimal"

// Plan описывает тарифный план подписки.
type Plan struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	MonthlyPrice decimal.Decimal `json:"monthlyPrice"`
	Enabled      bool            `json:"enabled"`
}

// Plans возвращает каталог тарифов в порядке отображения.
func Plans() []Plan {
	return []Plan{
		{ID: "basic", Label: "Básico", MonthlyPrice: decimal.NewFromInt(5000), Enabled: true},
		{ID: "pro", Label: "Profesional", MonthlyPrice: decimal.NewFromInt(10000)},
		{ID: "auto", Label: "Piloto Automático", MonthlyPrice: decimal.NewFromInt(50000)},
	}
}

// FindPlan ищет тариф по идентификатору.
func FindPlan(id string) (Plan, bool) {
	for _, p := range Plans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PriceLabel форматирует цену как в витрине: "$5.000/mes".
func (p Plan) PriceLabel() string {
	digits := p.MonthlyPrice.Truncate(0).String()
	neg := false
	if len(digits) > 0 && digits[0] == '-' {
		neg = true
		digits = digits[1:]
	}

	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	if neg {
		return "-$" + string(out) + "/mes"
	}
	return "$" + string(out) + "/mes"
}
