package application

import "time"

// Clock lets services read the time through an injectable source.
type Clock interface {
	Now() time.Time
}

// SystemClock reports UTC wall time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
