package conflict

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
)

// Defaults for Options fields left zero.
const (
	DefaultTimestampThreshold = 100 * time.Millisecond
	DefaultMinResolveInterval = 50 * time.Millisecond
	DefaultAuthorityWeight    = 0.6
	DefaultMaxHistory         = 100

	// confidence decays with snapshot age; after 5s a snapshot is down to
	// about a third of its base confidence.
	confidenceHalfLife = 5 * time.Second

	hashVerifiedFactor = 1.2
	hashMismatchFactor = 0.7
)

// carryOverPaths are overlaid from the losing snapshot onto the winner:
// identity and match-setup fields that must not regress just because the
// rest of the state lost the merge.
var carryOverPaths = []string{"player.name", "player.level", "matchSettings"}

// defaultCriticalPaths drive desynchronization detection.
var defaultCriticalPaths = []string{"health", "position", "actionPoints"}

// Options tunes a Resolver. The zero value gets sane defaults.
type Options struct {
	// TimestampThreshold under which two snapshots count as synchronized.
	TimestampThreshold time.Duration

	// MinResolveInterval debounces back-to-back resolutions.
	MinResolveInterval time.Duration

	// AuthorityWeight discounts the side opposite the authoritative one,
	// in (0, 1]. Lower means authority dominates harder.
	AuthorityWeight float64

	// MaxHistory caps per-participant state history. The action log holds
	// twice this many records.
	MaxHistory int

	// CriticalPaths checked by IsSignificantlyDesynchronized.
	CriticalPaths []string

	// Clock for debounce and staleness; real clock when nil.
	Clock clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.TimestampThreshold <= 0 {
		o.TimestampThreshold = DefaultTimestampThreshold
	}
	if o.MinResolveInterval <= 0 {
		o.MinResolveInterval = DefaultMinResolveInterval
	}
	if o.AuthorityWeight <= 0 {
		o.AuthorityWeight = DefaultAuthorityWeight
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = DefaultMaxHistory
	}
	if len(o.CriticalPaths) == 0 {
		o.CriticalPaths = defaultCriticalPaths
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// ResolveOptions tunes a single Resolve call.
type ResolveOptions struct {
	// IsLocalAuthoritative marks the local side (e.g. the room owner) as
	// the authority for this resolution; otherwise the remote side is.
	IsLocalAuthoritative bool

	// ForceResolution bypasses the debounce and the timestamp threshold.
	ForceResolution bool
}

type historyEntry struct {
	state     Value
	timestamp int64
}

// Resolver reconciles two independently-evolving state snapshots. It keeps
// bounded per-participant history and a bounded action log, computes
// confidence-weighted merges, detects severe divergence and can reconstruct
// past states from history.
//
// A Resolver is confined to its session's coordination goroutine and is not
// safe for concurrent use.
type Resolver struct {
	opts Options

	history   map[string][]historyEntry
	actionLog []ActionRecord

	lastResolution time.Time
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts Options) *Resolver {
	return &Resolver{
		opts:    opts.withDefaults(),
		history: map[string][]historyEntry{},
	}
}

// RecordState appends a state to the owner's bounded history, evicting the
// oldest entry beyond the cap.
func (r *Resolver) RecordState(ownerID string, state Value, timestamp int64) {
	entries := append(r.history[ownerID], historyEntry{state: state, timestamp: timestamp})
	if len(entries) > r.opts.MaxHistory {
		entries = entries[len(entries)-r.opts.MaxHistory:]
	}
	r.history[ownerID] = entries
}

// RecordAction appends the action to the bounded log, stamped with local
// receipt time.
func (r *Resolver) RecordAction(action ActionRecord) {
	action.RecordedAt = r.opts.Clock.Now().UnixMilli()
	r.actionLog = append(r.actionLog, action)
	if limit := r.opts.MaxHistory * 2; len(r.actionLog) > limit {
		r.actionLog = r.actionLog[len(r.actionLog)-limit:]
	}
}

// Actions returns the recorded action log, oldest first.
func (r *Resolver) Actions() []ActionRecord {
	return append([]ActionRecord(nil), r.actionLog...)
}

// Resolve produces one authoritative snapshot from a local and a remote one.
// It never fails: a missing side degrades to returning the other, a hash
// mismatch only lowers confidence.
func (r *Resolver) Resolve(local, remote *Snapshot, opts ResolveOptions) *Snapshot {
	now := r.opts.Clock.Now()

	if !opts.ForceResolution && now.Sub(r.lastResolution) < r.opts.MinResolveInterval {
		return local
	}
	r.lastResolution = now

	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}

	diff := local.Timestamp - remote.Timestamp
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Millisecond < r.opts.TimestampThreshold && !opts.ForceResolution {
		return local
	}

	localConfidence := r.confidence(local, now, !opts.IsLocalAuthoritative)
	remoteConfidence := r.confidence(remote, now, opts.IsLocalAuthoritative)

	slog.Debug("resolving state conflict",
		"localConfidence", localConfidence,
		"remoteConfidence", remoteConfidence,
		"timestampDiffMs", diff)

	switch {
	case localConfidence > remoteConfidence:
		return r.adjust(local, remote, now)
	case remoteConfidence > localConfidence:
		return r.adjust(remote, local, now)
	case local.Timestamp >= remote.Timestamp:
		return r.adjust(local, remote, now)
	default:
		return r.adjust(remote, local, now)
	}
}

// confidence scores a snapshot in [0, 1]: exponential recency decay, an
// authority discount applied to the side facing the authoritative one, and a
// bonus or penalty from verifying the consistency hash.
func (r *Resolver) confidence(s *Snapshot, now time.Time, discounted bool) float64 {
	age := float64(now.UnixMilli() - s.Timestamp)
	c := math.Exp(-age / float64(confidenceHalfLife.Milliseconds()))

	if discounted {
		c *= r.opts.AuthorityWeight
	}

	if s.ConsistencyHash != "" {
		if PayloadHash(s.Payload) == s.ConsistencyHash {
			c *= hashVerifiedFactor
		} else {
			c *= hashMismatchFactor
		}
	}

	return math.Min(c, 1.0)
}

// adjust builds the result from the winning snapshot, overlays the fields
// that must not regress from the losing one, and re-stamps hash and
// resolution time.
func (r *Resolver) adjust(winner, loser *Snapshot, now time.Time) *Snapshot {
	result := winner.Clone()
	for _, path := range carryOverPaths {
		if v, ok := loser.Payload.Path(path); ok {
			result.Payload = result.Payload.WithPath(path, v)
		}
	}
	result.ConsistencyHash = PayloadHash(result.Payload)
	result.ResolvedAt = now.UnixMilli()
	return &result
}

// ResolveProperty merges a single property of the two snapshots using the
// kind/hint policy table.
func (r *Resolver) ResolveProperty(local, remote *Snapshot, path string) Value {
	var lv, rv Value
	if local != nil {
		lv, _ = local.Payload.Path(path)
	}
	if remote != nil {
		rv, _ = remote.Payload.Path(path)
	}
	return MergeValues(lv, rv, path)
}

// IsSignificantlyDesynchronized reports whether two snapshots diverge beyond
// the acceptable bound on the critical properties. Numeric pairs count when
// their relative difference exceeds 0.5; other pairs count on any
// inequality. Divergence is significant when at least half the critical
// properties (rounded up) differ.
func (r *Resolver) IsSignificantlyDesynchronized(a, b *Snapshot) bool {
	if a == nil || b == nil {
		return false
	}

	significant := 0
	for _, path := range r.opts.CriticalPaths {
		av, aok := a.Payload.Path(path)
		bv, bok := b.Payload.Path(path)
		if !aok || !bok {
			continue
		}

		if av.Kind() == KindNumber && bv.Kind() == KindNumber && av.Number() != 0 && bv.Number() != 0 {
			rel := math.Abs(av.Number()-bv.Number()) / math.Max(math.Abs(av.Number()), math.Abs(bv.Number()))
			if rel > 0.5 {
				significant++
			}
		} else if !av.Equal(bv) {
			significant++
		}
	}

	return significant >= (len(r.opts.CriticalPaths)+1)/2
}

// ReconstructStateFromHistory returns the recorded state closest to the
// target timestamp, or nil if the owner has no history. Ties resolve to the
// earliest entry in timestamp-sorted order.
func (r *Resolver) ReconstructStateFromHistory(ownerID string, targetTimestamp int64) *Snapshot {
	entries := r.history[ownerID]
	if len(entries) == 0 {
		return nil
	}

	sorted := append([]historyEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].timestamp < sorted[j].timestamp
	})

	closest := sorted[0]
	minDiff := absDiff(targetTimestamp, closest.timestamp)
	for _, e := range sorted[1:] {
		if d := absDiff(targetTimestamp, e.timestamp); d < minDiff {
			minDiff = d
			closest = e
		}
	}

	return &Snapshot{
		OwnerID:   ownerID,
		Timestamp: closest.timestamp,
		Payload:   closest.state,
	}
}

// Reset clears history, the action log and the debounce timer. Called when a
// session ends.
func (r *Resolver) Reset() {
	r.history = map[string][]historyEntry{}
	r.actionLog = nil
	r.lastResolution = time.Time{}
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
