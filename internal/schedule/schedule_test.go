package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchedule = `
monday:
  "06:00-07:00": "breakfast"
  "07:00-09:00": "commute"
  "23:00-01:00": "late reading"
tuesday:
  "09:00-17:00": "work"
`

// 2024-01-01 is a Monday.
func at(day, hh, mm, ss int) time.Time {
	return time.Date(2024, 1, day, hh, mm, ss, 0, time.UTC)
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	table, err := Parse([]byte(testSchedule))
	require.NoError(t, err)
	return NewProvider(table, time.UTC)
}

func TestProvider_CurrentActivity(t *testing.T) {
	p := newTestProvider(t)

	tests := []struct {
		name   string
		now    time.Time
		want   string
		wantOK bool
	}{
		{"start bound inclusive", at(1, 6, 0, 0), "breakfast", true},
		{"end bound inclusive", at(1, 7, 0, 0), "breakfast", true},
		{"past end by seconds falls through", at(1, 7, 0, 30), "commute", true},
		{"inside later range", at(1, 8, 15, 0), "commute", true},
		{"gap", at(1, 12, 0, 0), "", false},
		{"wrap before midnight", at(1, 23, 30, 0), "late reading", true},
		{"wrap after midnight same day table", at(1, 0, 30, 0), "late reading", true},
		{"other day", at(2, 10, 0, 0), "work", true},
		{"day without entries", at(3, 10, 0, 0), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.CurrentActivity(tt.now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_SecondPrecisionOutsideRange(t *testing.T) {
	table, err := Parse([]byte(`monday: {"06:00-07:00": "breakfast"}`))
	require.NoError(t, err)
	p := NewProvider(table, time.UTC)

	_, ok := p.CurrentActivity(at(1, 7, 0, 30))
	assert.False(t, ok)
}

func TestProvider_Idempotent(t *testing.T) {
	p := newTestProvider(t)
	now := at(1, 23, 45, 10)

	first, ok1 := p.CurrentActivity(now)
	for i := 0; i < 5; i++ {
		got, ok := p.CurrentActivity(now)
		assert.Equal(t, first, got)
		assert.Equal(t, ok1, ok)
	}
}

func TestProvider_FirstMatchInFileOrder(t *testing.T) {
	table, err := Parse([]byte(`
monday:
  "10:00-12:00": "first"
  "09:00-13:00": "second"
`))
	require.NoError(t, err)
	p := NewProvider(table, time.UTC)

	got, ok := p.CurrentActivity(at(1, 11, 0, 0))
	require.True(t, ok)
	assert.Equal(t, "first", got)
}

func TestProvider_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	table, err := Parse([]byte(testSchedule))
	require.NoError(t, err)
	p := NewProvider(table, loc)

	// 04:30 UTC Monday is 06:30 local.
	got, ok := p.CurrentActivity(at(1, 4, 30, 0))
	require.True(t, ok)
	assert.Equal(t, "breakfast", got)
}

func TestWeekdayOf(t *testing.T) {
	assert.Equal(t, Monday, WeekdayOf(time.Monday))
	assert.Equal(t, Sunday, WeekdayOf(time.Sunday))
	assert.Equal(t, Saturday, WeekdayOf(time.Saturday))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown day", `funday: {"06:00-07:00": "x"}`},
		{"bad range", `monday: {"06:00to07:00": "x"}`},
		{"bad clock", `monday: {"25:00-26:00": "x"}`},
		{"empty activity", `monday: {"06:00-07:00": ""}`},
		{"duplicate day", "monday: {\"06:00-07:00\": \"x\"}\nmon: {\"08:00-09:00\": \"y\"}"},
		{"not a mapping", `- monday`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestTable_DayReturnsCopyInOrder(t *testing.T) {
	table, err := Parse([]byte(testSchedule))
	require.NoError(t, err)

	day := table.Day(Monday)
	require.Len(t, day, 3)
	assert.Equal(t, "06:00-07:00", day[0].Range.String())
	assert.Equal(t, "late reading", day[2].Activity)

	day[0].Activity = "mutated"
	assert.Equal(t, "breakfast", table.Day(Monday)[0].Activity)
	assert.Empty(t, table.Day(Wednesday))
	assert.Nil(t, table.Day(Weekday(9)))
}

func TestDefault_CoversEveryDay(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)
	for d := Monday; d <= Sunday; d++ {
		assert.NotEmpty(t, table.Day(d), d.String())
	}
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, table.Day(Friday))

	_, err = Load("/nonexistent/schedule.yaml")
	assert.Error(t, err)
}
