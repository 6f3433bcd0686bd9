// Package money конвертирует суммы между минорными единицами валюты (int64)
// и строковым десятичным форматом платёжного провайдера вида "30.00".
// Внутри сервиса суммы всегда хранятся в минорных единицах, плавающая
// точка не используется.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// Format переводит сумму в минорных единицах в строку провайдера, например
// 3000 -> "30.00".
func Format(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// Parse переводит строку провайдера вида "30.00" в минорные единицы.
// Допускается не более двух знаков после точки.
func Parse(value string) (int64, error) {
	const op = "money.Parse"

	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("%s: empty value", op)
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	whole, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%s: too many fraction digits in %q", op, value)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	minor := units*100 + cents
	if negative {
		minor = -minor
	}
	return minor, nil
}
