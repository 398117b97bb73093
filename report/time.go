package report

import (
	"strconv"
	"time"

	"github.com/targodan/go-errors"
)

const Format = "2006-01-02T15:04:05.000000Z07:00"

// Time is a time.Time with microsecond precision in JSON.
type Time struct {
	time.Time
}

func Now() Time {
	return Time{time.Now()}
}

func (t Time) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(Format)+2)
	b = append(b, '"')
	b = t.AppendFormat(b, Format)
	b = append(b, '"')
	return b, nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	tmp, err := time.Parse(`"`+Format+`"`, string(b))
	if err != nil {
		return errors.Errorf("invalid report time, reason: %w", err)
	}
	t.Time = tmp
	return nil
}

// Duration is a time.Duration serialised as fractional seconds.
type Duration time.Duration

func (d Duration) Seconds() float64 {
	return time.Duration(d).Seconds()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(d.Seconds(), 'f', 3, 64)), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return errors.Errorf("invalid report duration, reason: %w", err)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}
