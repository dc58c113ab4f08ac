// internal/score/engine.go
package score

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solatis/mailscore/internal/core/metrics"
	"github.com/solatis/mailscore/internal/pattern"
	"github.com/solatis/mailscore/internal/types"
)

/*
 * Score engine.
 *
 * Scoring one record:
 *   1. Reset the record's score to 0
 *   2. Walk rules in store order with one match cache for the record
 *   3. On match: an exact rule, or a value of ScoreMax or ScoreMin, sets
 *      the score and ends the walk; any other rule adds its value
 *   4. Floor the score at 0
 *   5. Apply thresholds: <= delete marks deleted, <= read marks read,
 *      >= flag marks flagged; each check is independent
 *
 * The running score is stored on the record as rules add to it, so a rule
 * using the ~n leaf sees the total accumulated by the rules before it.
 *
 * Patterns are evaluated in full-address mode: address leaves test personal
 * names as well as mailboxes.
 *
 * Rescoring a mailbox runs only when the store changed and holds rules.
 * The change flag is cleared either way.
 */

// Thresholds are the score limits that trigger flag changes. Comparisons
// are inclusive.
type Thresholds struct {
	Delete int
	Read   int
	Flag   int
}

// DefaultThresholds never fire for floored scores, except Flag at ScoreMax.
func DefaultThresholds() Thresholds {
	return Thresholds{Delete: -1, Read: -1, Flag: types.ScoreMax}
}

// Record is a scorable record with the mutators threshold actions use.
// The propagate argument asks the record to update its mailbox counters too.
type Record interface {
	pattern.Message
	SetScore(int)
	MarkDeleted(propagate bool)
	MarkRead(propagate bool)
	MarkFlagged(propagate bool)
	ResetDisplay()
}

// SortKey is a mailbox sort criterion.
type SortKey int

const (
	SortDate SortKey = iota
	SortScore
	SortThreads
	SortSubject
	SortFrom
	SortSize
	SortReceived
	SortUnsorted
)

var sortNames = map[string]SortKey{
	"date":     SortDate,
	"score":    SortScore,
	"threads":  SortThreads,
	"subject":  SortSubject,
	"from":     SortFrom,
	"size":     SortSize,
	"received": SortReceived,
	"unsorted": SortUnsorted,
}

// ParseSortKey converts a sort name; an empty name is SortUnsorted.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortUnsorted, nil
	}
	k, ok := sortNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown sort %q", s)
	}
	return k, nil
}

// Mailbox is the collection Rescore works on.
type Mailbox interface {
	Len() int
	At(i int) Record
	SortOrder() (primary, aux SortKey)
	RequestResort(subthreads bool)
	RequestRedraw()
}

// Engine scores records against the rules in a Store.
type Engine struct {
	store      *Store
	thresholds Thresholds
	eval       *pattern.Evaluator
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDirectory sets the address book patterns consult.
func WithDirectory(dir pattern.Directory) EngineOption {
	return func(e *Engine) {
		e.eval = pattern.NewEvaluator(dir)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine over store.
func NewEngine(store *Store, t Thresholds, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		thresholds: t,
		eval:       pattern.NewEvaluator(nil),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the rule store.
func (e *Engine) Store() *Store {
	return e.store
}

// Thresholds returns the active thresholds.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// SetThresholds replaces the thresholds and requests a rescore.
func (e *Engine) SetThresholds(t Thresholds) {
	e.thresholds = t
	e.store.MarkDirty()
}

// SetDirectory replaces the address book and requests a rescore.
func (e *Engine) SetDirectory(dir pattern.Directory) {
	e.eval = pattern.NewEvaluator(dir)
	e.store.MarkDirty()
}

// ScoreOne computes rec's score, stores it on rec and applies thresholds.
func (e *Engine) ScoreOne(rec Record, propagate bool) int {
	rec.SetScore(0)
	cache := pattern.NewCache()

	for _, r := range e.store.rules {
		if !e.eval.Evaluate(r.Pattern, rec, pattern.MatchFullAddress, cache) {
			continue
		}
		if r.Exact || r.Value == types.ScoreMax || r.Value == types.ScoreMin {
			rec.SetScore(r.Value)
			break
		}
		rec.SetScore(rec.Score() + r.Value)
	}

	score := rec.Score()
	if score < 0 {
		score = 0
		rec.SetScore(0)
	}

	if score <= e.thresholds.Delete {
		rec.MarkDeleted(propagate)
		metrics.ThresholdActions.WithLabelValues("delete").Inc()
	}
	if score <= e.thresholds.Read {
		rec.MarkRead(propagate)
		metrics.ThresholdActions.WithLabelValues("read").Inc()
	}
	if score >= e.thresholds.Flag {
		rec.MarkFlagged(propagate)
		metrics.ThresholdActions.WithLabelValues("flag").Inc()
	}

	metrics.MessagesScored.Inc()
	return score
}

// Rescore rescores every record in mb if the rule set changed and is not
// empty. It returns the number of records scored.
func (e *Engine) Rescore(mb Mailbox) int {
	defer func() { e.store.dirty = false }()

	if !e.store.NeedsRescore() || e.store.Len() == 0 {
		return 0
	}

	start := time.Now()
	primary, aux := mb.SortOrder()
	if primary == SortScore || aux == SortScore {
		mb.RequestResort(primary == SortThreads)
	}
	mb.RequestRedraw()

	n := mb.Len()
	for i := 0; i < n; i++ {
		rec := mb.At(i)
		e.ScoreOne(rec, true)
		rec.ResetDisplay()
	}

	elapsed := time.Since(start)
	metrics.RescoreDuration.Observe(elapsed.Seconds())
	metrics.RulesLoaded.Set(float64(e.store.Len()))
	e.logger.Info("mailbox rescored", "messages", n, "rules", e.store.Len(), "duration", elapsed)
	return n
}
