package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_ReturnsUTC(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestFixedClock(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := FixedClock(t0)

	assert.Equal(t, t0, clock.Now())
	assert.Equal(t, t0, clock.Now())
}

func TestClockFunc(t *testing.T) {
	calls := 0
	clock := ClockFunc(func() time.Time {
		calls++
		return time.Unix(int64(calls), 0).UTC()
	})

	assert.Equal(t, int64(1), clock.Now().Unix())
	assert.Equal(t, int64(2), clock.Now().Unix())
}

func TestFilter_Offset(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"first page", Filter{Page: 1, PageSize: 20}, 0},
		{"zero page", Filter{Page: 0, PageSize: 20}, 0},
		{"third page", Filter{Page: 3, PageSize: 10}, 20},
		{"no page size", Filter{Page: 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Offset())
		})
	}
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2, 3}, 21, 1, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Len(t, p.Items, 3)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}
