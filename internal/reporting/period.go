package reporting

import (
	"fmt"
	"time"
)

type Period string

const (
	Period3Months  Period = "3months"
	Period6Months  Period = "6months"
	Period12Months Period = "12months"
	PeriodYTD      Period = "ytd"
	PeriodAll      Period = "all"
)

// ParsePeriod accepts the dashboard's period names. An empty value means all.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case "":
		return PeriodAll, nil
	case Period3Months, Period6Months, Period12Months, PeriodYTD, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q", raw)
	}
}

// PeriodStart is the first day included in period, in now's location. The
// zero time means no lower bound.
func PeriodStart(period Period, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case Period3Months:
		return today.AddDate(0, -3, 0)
	case Period6Months:
		return today.AddDate(0, -6, 0)
	case Period12Months:
		return today.AddDate(-1, 0, 0)
	case PeriodYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}
