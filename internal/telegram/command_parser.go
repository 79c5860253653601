package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kitbuilder587/crawldock/internal/search"
)

// ParseSearchArgs разбирает аргументы /search.
// Модификаторы n:5 lang:en region:us safe:on time:week можно ставить в
// любом месте, все остальное считается запросом.
func ParseSearchArgs(args string) (query string, opts search.Options, err error) {
	var words []string
	for _, field := range strings.Fields(args) {
		key, value, ok := strings.Cut(field, ":")
		if !ok || value == "" {
			words = append(words, field)
			continue
		}

		switch strings.ToLower(key) {
		case "n":
			n, convErr := strconv.Atoi(value)
			if convErr != nil {
				return "", search.Options{}, fmt.Errorf("%w: n must be a number, got %q", search.ErrInvalidOptions, value)
			}
			opts.MaxResults = n
		case "lang":
			opts.Language = strings.ToLower(value)
		case "region":
			opts.Region = strings.ToLower(value)
		case "safe":
			safe, parseErr := parseSwitch(value)
			if parseErr != nil {
				return "", search.Options{}, parseErr
			}
			opts.SafeSearch = safe
		case "time":
			opts.TimeRange = search.TimeRange(strings.ToLower(value))
		default:
			// "https://..." и прочие двоеточия - часть запроса
			words = append(words, field)
		}
	}

	if err := opts.Validate(); err != nil {
		return "", search.Options{}, err
	}
	return strings.Join(words, " "), opts, nil
}

// ParseLimit - необязательный числовой аргумент команды
func ParseLimit(args string, defaultLimit, maxLimit int) int {
	args = strings.TrimSpace(args)
	if args == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(args)
	if err != nil || n < 1 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "yes", "1", "да":
		return true, nil
	case "off", "false", "no", "0", "нет":
		return false, nil
	default:
		return false, fmt.Errorf("%w: safe must be on or off, got %q", search.ErrInvalidOptions, value)
	}
}

func normalizeSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
