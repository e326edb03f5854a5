package systems

import (
	"fmt"
	"io"
	"sync"
	"time"

	"ionic/internal/sched"
)

// LAN discovery constants. Clients listen on the group and list every
// server announcing there under "LAN worlds".
const (
	LANGroup    = "224.0.2.60:4445"
	LANInterval = 1500 * time.Millisecond
)

// LANPayload formats one announcement for a server listening on port.
func LANPayload(motd string, port int) []byte {
	return []byte(fmt.Sprintf("[MOTD]%s[/MOTD][AD]%d[/AD]", motd, port))
}

// LANAnnouncer writes the announcement to a datagram socket at most once
// per interval. It is idle until Start and after Stop.
type LANAnnouncer struct {
	interval time.Duration

	mu      sync.Mutex
	dst     io.Writer
	payload []byte
	last    time.Time
}

func NewLANAnnouncer(interval time.Duration) *LANAnnouncer {
	if interval <= 0 {
		interval = LANInterval
	}
	return &LANAnnouncer{interval: interval}
}

// Start begins announcing payload on dst, usually a UDP socket dialed to
// LANGroup.
func (a *LANAnnouncer) Start(dst io.Writer, payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dst, a.payload, a.last = dst, payload, time.Time{}
}

func (a *LANAnnouncer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dst = nil
}

// Announce sends the payload if the interval has passed since the last
// send. It reports whether a datagram was written.
func (a *LANAnnouncer) Announce(now time.Time) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dst == nil || (!a.last.IsZero() && now.Sub(a.last) < a.interval) {
		return false, nil
	}
	a.last = now
	if _, err := a.dst.Write(a.payload); err != nil {
		return false, err
	}
	return true, nil
}

// LanPinger announces the server to the local network.
func LanPinger(env *Env) sched.System {
	var failing bool
	return sched.System{
		Name: "lan_pinger",
		Run: func(t *sched.Tick) error {
			sent, err := env.LAN.Announce(t.Now)
			switch {
			case err != nil && !failing:
				failing = true
				env.Log.Warn().Err(err).Str("group", LANGroup).Msg("lan announcement failed")
			case sent && failing:
				failing = false
				env.Log.Info().Str("group", LANGroup).Msg("lan announcements resumed")
			}
			return nil
		},
	}
}
