// Package clock provides the wall-clock source used when frame
// timestamps are rebased from the device clock.
package clock

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Source yields the current wall-clock time.
type Source interface {
	Now() time.Time
}

type systemSource struct{}

func (systemSource) Now() time.Time { return time.Now() }

// NewSystem returns the local system clock.
func NewSystem() Source { return systemSource{} }

// ntpSource applies a fixed offset obtained from one NTP exchange.
// Useful on boards without an RTC where the system clock may be off at
// boot.
type ntpSource struct {
	offset time.Duration
}

func (s ntpSource) Now() time.Time { return time.Now().Add(s.offset) }

// NewNTP queries server once and returns a source that corrects the
// system clock by the measured offset.
func NewNTP(server string) (Source, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return nil, fmt.Errorf("ntp query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("ntp response from %s: %w", server, err)
	}
	return ntpSource{offset: resp.ClockOffset}, nil
}
