package regex_analyzer

import (
	"regexp"
	"sync"
	"sync/atomic"
)

// compiledEntry is stored fully built; readers never observe a partial matcher.
// A compile failure is cached too so a bad rule pattern is not recompiled for
// every file.
type compiledEntry struct {
	re  *regexp.Regexp
	err error
}

// PatternCache memoizes compiled patterns keyed by their source text.
//
// Lookups are lock-free (sync.Map). On a miss the pattern is compiled outside
// any lock and published with LoadOrStore, so two goroutines racing on the same
// new source may both compile it; the first stored entry wins and both callers
// get that one. Compilation is pure, so the race is benign.
//
// There is no eviction: sources come from rule configuration, a small and
// stable set, not from file content.
type PatternCache struct {
	entries sync.Map // map[string]*compiledEntry

	// Statistics
	hits     atomic.Int64
	misses   atomic.Int64
	compiles atomic.Int64
	failures atomic.Int64
	size     atomic.Int64
}

// CacheStats tracks cache performance statistics
type CacheStats struct {
	Hits     int64
	Misses   int64
	Compiles int64
	Failures int64
	Size     int64
}

var defaultCache = NewPatternCache()

// Default returns the process-wide pattern cache
func Default() *PatternCache {
	return defaultCache
}

// NewPatternCache creates an empty cache. Most callers want Default.
func NewPatternCache() *PatternCache {
	return &PatternCache{}
}

// Compile returns the compiled form of source, compiling and storing it on
// first observation. The returned error is a *DialectError for constructs the
// engine cannot run, or the regexp syntax error otherwise.
func (pc *PatternCache) Compile(source string) (*regexp.Regexp, error) {
	if v, ok := pc.entries.Load(source); ok {
		pc.hits.Add(1)
		e := v.(*compiledEntry)
		return e.re, e.err
	}
	pc.misses.Add(1)

	entry := compile(source)
	pc.compiles.Add(1)
	if entry.err != nil {
		pc.failures.Add(1)
	}

	actual, loaded := pc.entries.LoadOrStore(source, entry)
	if !loaded {
		pc.size.Add(1)
	}
	e := actual.(*compiledEntry)
	return e.re, e.err
}

// MustCompile is like Compile but panics on error. Use for package-level
// patterns whose source is a constant.
func (pc *PatternCache) MustCompile(source string) *regexp.Regexp {
	re, err := pc.Compile(source)
	if err != nil {
		panic("regex_analyzer: Compile(" + quote(source) + "): " + err.Error())
	}
	return re
}

func compile(source string) *compiledEntry {
	normalized, err := Normalize(source)
	if err != nil {
		return &compiledEntry{err: err}
	}
	re, err := regexp.Compile(normalized)
	if err != nil {
		return &compiledEntry{err: err}
	}
	return &compiledEntry{re: re}
}

// Len returns the number of cached sources, failed ones included
func (pc *PatternCache) Len() int {
	return int(pc.size.Load())
}

// GetStats returns cache statistics
func (pc *PatternCache) GetStats() CacheStats {
	return CacheStats{
		Hits:     pc.hits.Load(),
		Misses:   pc.misses.Load(),
		Compiles: pc.compiles.Load(),
		Failures: pc.failures.Load(),
		Size:     pc.size.Load(),
	}
}

// GetHitRatio returns the cache hit ratio
func (pc *PatternCache) GetHitRatio() float64 {
	hits := pc.hits.Load()
	total := hits + pc.misses.Load()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

func quote(s string) string {
	return "`" + s + "`"
}
