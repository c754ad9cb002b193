package types

import "time"

// TimestampLayout is the wall-clock layout used in log lines and remote document keys.
const TimestampLayout = "2006/01/02 15:04:05"

// Sample is one successful reading, already converted and rounded.
type Sample struct {
	Timestamp    time.Time
	TemperatureF int
	HumidityPct  int
}

// TimestampString formats the sample time as YYYY/MM/DD HH:MM:SS.
func (s Sample) TimestampString() string {
	return s.Timestamp.Format(TimestampLayout)
}
