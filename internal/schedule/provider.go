package schedule

import "time"

// Provider answers what the companion is doing at a given moment.
type Provider struct {
	table *Table
	loc   *time.Location
}

// NewProvider evaluates the table in loc. A nil loc means time.Local.
func NewProvider(table *Table, loc *time.Location) *Provider {
	if loc == nil {
		loc = time.Local
	}
	return &Provider{table: table, loc: loc}
}

// CurrentActivity returns the scheduled activity at now, if any.
func (p *Provider) CurrentActivity(now time.Time) (string, bool) {
	local := now.In(p.loc)
	return p.table.Lookup(WeekdayOf(local.Weekday()), clockOf(local))
}

// Table returns the underlying schedule.
func (p *Provider) Table() *Table {
	return p.table
}

// Location returns the zone used for lookups.
func (p *Provider) Location() *time.Location {
	return p.loc
}
