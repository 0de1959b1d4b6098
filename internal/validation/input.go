package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinListingTitleLength       = 3
	MaxListingTitleLength       = 200
	MaxListingDescriptionLength = 2000
	MaxListingHours             = 1000.0
	MaxDisplayNameLength        = 64
	MinSearchQueryLength        = 1
	MaxSearchQueryLength        = 64
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateListingTitle проверяет заголовок объявления.
func ValidateListingTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок объявления обязателен")
	}
	return ValidateLength("заголовок", title, MinListingTitleLength, MaxListingTitleLength)
}

// ValidateListingDescription проверяет описание объявления.
func ValidateListingDescription(description string) error {
	return ValidateLength("описание", description, 0, MaxListingDescriptionLength)
}

// ValidateHours проверяет количество часов: больше нуля, не больше лимита, с точностью до десятых.
func ValidateHours(hours float64) error {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return fmt.Errorf("количество часов должно быть больше нуля")
	}
	if hours > MaxListingHours {
		return fmt.Errorf("количество часов не может превышать %.0f", MaxListingHours)
	}
	tenths := hours * 10
	if math.Abs(tenths-math.Round(tenths)) > 1e-9 {
		return fmt.Errorf("количество часов указывается с точностью до десятых")
	}
	return nil
}

// NormalizeDisplayName убирает управляющие символы и обрезает имя до допустимой длины.
func NormalizeDisplayName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		name = string([]rune(name)[:MaxDisplayNameLength])
	}
	return name
}

// ValidateSearchQuery проверяет строку поиска пользователей.
func ValidateSearchQuery(q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return fmt.Errorf("строка поиска обязательна")
	}
	return ValidateLength("строка поиска", q, MinSearchQueryLength, MaxSearchQueryLength)
}
