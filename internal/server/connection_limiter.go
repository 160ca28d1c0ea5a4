package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxStreamsPerIP   = 10
	ipCleanupInterval = 5 * time.Minute
	ipIdleCutoff      = 10 * time.Minute
)

// LimitReason describes why a stream connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ipEntry tracks one client IP: its open stream count and the token bucket
// that throttles reconnect storms from that IP.
type ipEntry struct {
	open     int
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ConnectionLimits guards the stream endpoints with three limits: a global
// per-instance cap (lock-free atomic), a per-IP concurrent cap, and a per-IP
// connection rate. Entries for idle IPs are swept periodically.
type ConnectionLimits struct {
	globalCurrent atomic.Int64
	globalMax     int64

	mu        sync.Mutex
	ips       map[string]*ipEntry
	perIPMax  int
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

func NewConnectionLimits(globalMax int64, perIPMax int, perSecond float64, burst int) *ConnectionLimits {
	if perIPMax <= 0 {
		perIPMax = maxStreamsPerIP
	}
	return &ConnectionLimits{
		globalMax: globalMax,
		ips:       make(map[string]*ipEntry),
		perIPMax:  perIPMax,
		rate:      rate.Limit(perSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(ipCleanupInterval),
	}
}

// Acquire claims a stream slot for the given IP. On rejection the returned
// reason labels the limit that tripped; partial acquisitions are rolled back
// so a rejection never leaks a slot.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.allowRate(ip) {
		return false, LimitReasonRate
	}

	if !l.acquireGlobal() {
		return false, LimitReasonGlobal
	}

	if !l.acquireIP(ip) {
		l.globalCurrent.Add(-1)
		return false, LimitReasonPerIP
	}

	return true, ""
}

// Release returns the slots claimed by a successful Acquire.
func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if entry, ok := l.ips[ip]; ok && entry.open > 0 {
		entry.open--
	}
	l.mu.Unlock()

	l.globalCurrent.Add(-1)
}

// GlobalCurrent returns the number of streams currently held instance-wide.
func (l *ConnectionLimits) GlobalCurrent() int64 {
	return l.globalCurrent.Load()
}

// UniqueIPs returns the number of IPs with a tracked entry.
func (l *ConnectionLimits) UniqueIPs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.globalCurrent.Load()
		if current >= l.globalMax {
			return false
		}
		if l.globalCurrent.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *ConnectionLimits) acquireIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entryLocked(ip)
	if entry.open >= l.perIPMax {
		return false
	}
	entry.open++
	return true
}

func (l *ConnectionLimits) allowRate(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.cleanupAt) {
		l.sweepLocked()
		l.cleanupAt = time.Now().Add(ipCleanupInterval)
	}

	return l.entryLocked(ip).limiter.Allow()
}

// entryLocked returns the entry for ip, creating it if needed, and refreshes
// its last-seen time. Must be called with mu held.
func (l *ConnectionLimits) entryLocked(ip string) *ipEntry {
	entry, ok := l.ips[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.ips[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry
}

// sweepLocked drops entries for IPs with no open streams that have been
// quiet past the idle cutoff. Must be called with mu held.
func (l *ConnectionLimits) sweepLocked() {
	cutoff := time.Now().Add(-ipIdleCutoff)
	for ip, entry := range l.ips {
		if entry.open == 0 && entry.lastSeen.Before(cutoff) {
			delete(l.ips, ip)
		}
	}
}
