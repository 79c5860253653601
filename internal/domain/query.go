package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxQueryLength = 1000

// NormalizeQuery обрезает пробелы и проверяет запрос: пустой и длиннее
// MaxQueryLength рун не проходят
func NormalizeQuery(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyQuery
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return "", ErrQueryTooLong
	}
	return text, nil
}
