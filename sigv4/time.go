package sigv4

import "time"

const (
	// timeFormat is the X-Amz-Date header format.
	timeFormat = "20060102T150405Z"

	// shortTimeFormat is the date stamp format of the credential scope.
	shortTimeFormat = "20060102"
)

type signingTime struct {
	time.Time
}

func newSigningTime(t time.Time) signingTime {
	return signingTime{t}
}

func (t signingTime) amzDate() string {
	return t.Format(timeFormat)
}

func (t signingTime) dateStamp() string {
	return t.Format(shortTimeFormat)
}

func isSameDay(x, y time.Time) bool {
	xYear, xMonth, xDay := x.Date()
	yYear, yMonth, yDay := y.Date()
	return xYear == yYear && xMonth == yMonth && xDay == yDay
}
