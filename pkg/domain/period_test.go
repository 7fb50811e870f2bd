package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	valid := []string{"2024", "2024-S1", "2024-S2", "2024-Q1", "2024-Q4", "2024-M01", "2024-M12"}
	for _, s := range valid {
		p, err := ParsePeriod(s)
		require.NoError(t, err, s)
		assert.True(t, p.IsValid())
		assert.Equal(t, 2024, p.Year())
	}

	invalid := []string{"", "24-Q1", "2024-Q5", "2024-M13", "2024-M1", "2024-S3", "2024-X1"}
	for _, s := range invalid {
		_, err := ParsePeriod(s)
		assert.Error(t, err, s)
	}
}

func TestPeriodBounds(t *testing.T) {
	t.Run("quarter", func(t *testing.T) {
		start, end := Period("2024-Q3").Bounds()
		assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("annual", func(t *testing.T) {
		start, end := Period("2024").Bounds()
		assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("semester", func(t *testing.T) {
		start, end := Period("2024-S2").Bounds()
		assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("month", func(t *testing.T) {
		start, end := Period("2024-M02").Bounds()
		assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), end)
	})
}

func TestPeriodContains(t *testing.T) {
	p := Period("2024-Q1")
	assert.True(t, p.Contains(time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, Period("garbage").Contains(time.Now()))
}
