package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPgCode(t *testing.T) {
	unique := &pq.Error{Code: pqUniqueViolation}
	assert.Equal(t, pqUniqueViolation, pgCode(unique))
	assert.Equal(t, pqForeignKeyViolation, pgCode(fmt.Errorf("insert: %w", &pq.Error{Code: pqForeignKeyViolation})))
	assert.Empty(t, pgCode(errors.New("boom")))
	assert.Empty(t, pgCode(nil))
}

func TestNullable(t *testing.T) {
	empty, set := "", "x"
	assert.Nil(t, nullable(nil))
	assert.Nil(t, nullable(&empty))
	assert.Equal(t, &set, nullable(&set))
}

func TestInt64s(t *testing.T) {
	assert.Equal(t, []int64{1, 5}, int64s([]int{1, 5}))
	assert.Empty(t, int64s(nil))
}
