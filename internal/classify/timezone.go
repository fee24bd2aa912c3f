package classify

import (
	"fmt"
	"time"
)

// DisplayZone is the fixed UTC+9 zone used for every human-facing bucket.
var DisplayZone = time.FixedZone("KST", 9*60*60)

// HourKey returns the two-digit display hour ("00".."23").
func HourKey(t time.Time) string {
	return fmt.Sprintf("%02d", t.In(DisplayZone).Hour())
}

// DayKey returns the display date ("YYYY-MM-DD").
func DayKey(t time.Time) string {
	return t.In(DisplayZone).Format("2006-01-02")
}

// FiveMinuteSlot returns the display time floored to five minutes ("HH:MM").
func FiveMinuteSlot(t time.Time) string {
	local := t.In(DisplayZone)
	return fmt.Sprintf("%02d:%02d", local.Hour(), (local.Minute()/5)*5)
}

// DisplayTime renders t for chat messages.
func DisplayTime(t time.Time) string {
	return t.In(DisplayZone).Format("2006-01-02 15:04:05") + " KST"
}
