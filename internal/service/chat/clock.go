package chat

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// regions whose default time-of-day format is the 12-hour clock.
var twelveHourRegions = map[string]bool{
	"US": true, "CA": true, "AU": true, "NZ": true, "IN": true,
	"PH": true, "PK": true, "EG": true, "SA": true, "CO": true,
}

// Clock produces the HH:MM label stamped on messages, in the viewer's locale.
type Clock struct {
	mu     sync.RWMutex
	now    func() time.Time
	tag    language.Tag
	hour12 bool
}

// NewClock returns a clock for locale, falling back to pt-BR when the tag is invalid.
func NewClock(locale string) *Clock {
	c := &Clock{now: time.Now}
	if err := c.SetLocale(locale); err != nil {
		_ = c.SetLocale("pt-BR")
	}
	return c
}

// SetLocale switches the label format. Labels already stamped are not touched.
func (c *Clock) SetLocale(locale string) error {
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	region, _ := tag.Region()

	c.mu.Lock()
	c.tag = tag
	c.hour12 = twelveHourRegions[region.String()]
	c.mu.Unlock()
	return nil
}

// Locale returns the canonical BCP 47 tag currently in use.
func (c *Clock) Locale() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tag.String()
}

// Label formats the current time of day.
func (c *Clock) Label() string {
	c.mu.RLock()
	now, hour12 := c.now, c.hour12
	c.mu.RUnlock()

	if hour12 {
		return now().Format("03:04 PM")
	}
	return now().Format("15:04")
}

// WithNow overrides the time source, for tests.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}
