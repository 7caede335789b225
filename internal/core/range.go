package core

import "time"

// DateRange is an inclusive span of calendar days. Start is never after End.
type DateRange struct {
	Start Date
	End   Date
}

// RangeDescriptor is what a caller sends: explicit bounds, a reference date,
// or both. Zero dates mean "not provided".
type RangeDescriptor struct {
	Start     Date
	End       Date
	Reference Date
}

// NormalizeRange resolves a descriptor into a concrete range.
//
// Explicit start and end win and are used verbatim. Otherwise the reference
// date expands to the first and last day of its month.
func NormalizeRange(desc RangeDescriptor) (DateRange, error) {
	hasStart, hasEnd := !desc.Start.IsZero(), !desc.End.IsZero()

	if hasStart && hasEnd {
		if desc.Start.After(desc.End.Time) {
			return DateRange{}, &InvalidRangeError{Start: desc.Start, End: desc.End}
		}
		return DateRange{Start: DateOf(desc.Start.Time), End: DateOf(desc.End.Time)}, nil
	}

	if !desc.Reference.IsZero() {
		return MonthOf(desc.Reference), nil
	}

	switch {
	case hasStart:
		return DateRange{}, NewValidationError("endDate", "required when startDate is set")
	case hasEnd:
		return DateRange{}, NewValidationError("startDate", "required when endDate is set")
	}
	return DateRange{}, NewValidationError("referenceDate", "a reference date or both startDate and endDate are required")
}

// MonthOf returns the calendar month containing d.
func MonthOf(d Date) DateRange {
	first := NewDate(d.Year(), int(d.Month()), 1)
	last := Date{Time: first.AddDate(0, 1, -1)}
	return DateRange{Start: first, End: last}
}

// Days is the inclusive number of days in the range.
func (r DateRange) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

// Contains reports whether t falls on a UTC day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DateOf(t.UTC())
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// Prior is the range of equal length ending the day before Start.
func (r DateRange) Prior() DateRange {
	end := r.Start.AddDays(-1)
	return DateRange{Start: end.AddDays(-(r.Days() - 1)), End: end}
}

// PreviousMonth is the calendar month before the one Start falls in.
func (r DateRange) PreviousMonth() DateRange {
	return MonthOf(MonthOf(r.Start).Start.AddDays(-1))
}

// Span returns the smallest range covering both r and other.
func (r DateRange) Span(other DateRange) DateRange {
	out := r
	if other.Start.Before(out.Start.Time) {
		out.Start = other.Start
	}
	if other.End.After(out.End.Time) {
		out.End = other.End
	}
	return out
}

// Months lists the YYYY-MM months the range touches, oldest first.
func (r DateRange) Months() []string {
	var months []string
	cur := NewDate(r.Start.Year(), int(r.Start.Month()), 1)
	for !cur.After(r.End.Time) {
		months = append(months, cur.Format("2006-01"))
		cur = Date{Time: cur.AddDate(0, 1, 0)}
	}
	return months
}

// Elapsed splits the range around today: days already elapsed (today
// included) and days still remaining after today.
func (r DateRange) Elapsed(today Date) (elapsed, remaining int) {
	switch {
	case today.Before(r.Start.Time):
		return 0, r.Days()
	case today.After(r.End.Time):
		return r.Days(), 0
	}
	elapsed = r.Start.DaysUntil(today) + 1
	return elapsed, r.Days() - elapsed
}

func (r DateRange) String() string {
	return r.Start.String() + " to " + r.End.String()
}
