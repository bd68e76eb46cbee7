package repository

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestLikeOperatorByDialect(t *testing.T) {
	if got := likeOperatorByDialect("sqlite"); got != "LIKE" {
		t.Fatalf("sqlite like operator want LIKE got %s", got)
	}
	if got := likeOperatorByDialect("postgres"); got != "ILIKE" {
		t.Fatalf("postgres like operator want ILIKE got %s", got)
	}
}

func TestNameLikeConditionDefaultsToSQLite(t *testing.T) {
	if got := nameLikeCondition(nil); got != "name LIKE ?" {
		t.Fatalf("condition mismatch, got %s", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("constraint failed: UNIQUE constraint failed: order_unlocks.order_id (2067)"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "idx_order_unlocks_order_id" (SQLSTATE 23505)`), true},
		{fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey), true},
		{errors.New("database is locked"), false},
	}
	for idx, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("case %d want %v got %v", idx, tc.want, got)
		}
	}
}
