package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("nullString(\"\") should be nil")
	}
	if got := nullString("google"); got == nil || *got != "google" {
		t.Errorf("nullString() = %v", got)
	}
}

func TestIsDuplicateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateError(tt.err); got != tt.want {
				t.Errorf("isDuplicateError() = %v, want %v", got, tt.want)
			}
		})
	}
}
