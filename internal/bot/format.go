package bot

import (
	"fmt"
	"strings"
	"time"

	"granabot/internal/ledger"
	"github.com/shopspring/decimal"
)

// formatBRL renders integer minor units in Brazilian style: "R$ 1.234,56".
func formatBRL(minor int64) string {
	value := decimal.New(minor, -2).StringFixed(2)

	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, cents, _ := strings.Cut(value, ".")

	var groups []string
	for len(whole) > 3 {
		groups = append([]string{whole[len(whole)-3:]}, groups...)
		whole = whole[:len(whole)-3]
	}
	groups = append([]string{whole}, groups...)

	out := "R$ " + strings.Join(groups, ".") + "," + cents
	if negative {
		out = "-" + out
	}
	return out
}

func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func directionLabel(d ledger.Direction) string {
	if d == ledger.DirectionIn {
		return "entrada"
	}
	return "saída"
}

func frequencyLabel(f ledger.Frequency) string {
	switch f {
	case ledger.FrequencyWeekly:
		return "semanal"
	case ledger.FrequencyMonthly:
		return "mensal"
	case ledger.FrequencyYearly:
		return "anual"
	default:
		return "único"
	}
}

// numberedLine renders one option of a numbered selection list.
func numberedLine(n int, label string) string {
	return fmt.Sprintf("*%d* - %s", n, label)
}
