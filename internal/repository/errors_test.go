package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil stays nil", nil, nil},
		{"no rows becomes not found", pgx.ErrNoRows, ErrNotFound},
		{"wrapped no rows becomes not found", fmt.Errorf("scan: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique violation becomes duplicate", &pgconn.PgError{Code: "23505"}, ErrDuplicate},
		{"other pg errors pass through", &pgconn.PgError{Code: "23503"}, nil},
		{"other errors pass through", other, other},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.in)
			if tc.want == nil && tc.in != nil {
				if got != tc.in {
					t.Errorf("Expected error to pass through unchanged, got %v", got)
				}
				return
			}
			if got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNullableLimit(t *testing.T) {
	if nullableLimit(0) != nil || nullableLimit(-3) != nil {
		t.Error("Expected non-positive limits to be NULL")
	}
	if p := nullableLimit(50); p == nil || *p != 50 {
		t.Errorf("Expected 50, got %v", p)
	}
}
