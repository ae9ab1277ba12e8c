package cfg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
)

var unknownKeyPattern = regexp.MustCompile(`has invalid keys: (.+)`)

// DecodeMountMap decodes a raw mount-table value (as produced by viper's
// unmarshal of a YAML/flag-bound "mounts" map) into a BackendConfig map,
// expanding the "a backend name alone is shorthand for {backend: name}"
// rule of §6, and rejecting unknown option keys with EINVAL plus a
// Levenshtein-suggested correction.
func DecodeMountMap(raw map[string]any, knownOptionKeys map[BackendKind][]string) (map[string]BackendConfig, error) {
	out := make(map[string]BackendConfig, len(raw))
	for point, v := range raw {
		var bc BackendConfig
		switch val := v.(type) {
		case string:
			bc = BackendConfig{Backend: BackendKind(val)}
		default:
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				DecodeHook:       DecodeHook(),
				ErrorUnused:      true,
				WeaklyTypedInput: true,
				Result:           &bc,
			})
			if err != nil {
				return nil, err
			}
			if err := dec.Decode(val); err != nil {
				return nil, annotateUnknownKey(err, point, knownOptionKeys)
			}
		}
		out[point] = bc
	}
	return out, nil
}

func annotateUnknownKey(err error, mountPoint string, known map[BackendKind][]string) error {
	m := unknownKeyPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Errorf("mount %q: %w", mountPoint, err)
	}
	keys := strings.Split(m[1], ", ")
	var allKnown []string
	for _, ks := range known {
		allKnown = append(allKnown, ks...)
	}
	suggestion := ""
	if best, ok := closestKey(keys[0], allKnown); ok {
		suggestion = fmt.Sprintf(" (did you mean %q?)", best)
	}
	return verrno.New(verrno.EINVAL, "mount %q: unknown option %q%s", mountPoint, keys[0], suggestion)
}

// closestKey returns the candidate in candidates with the smallest
// Levenshtein distance to key, provided that distance is small enough to
// plausibly be a typo.
func closestKey(key string, candidates []string) (string, bool) {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein(key, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist < 0 || bestDist > max(2, len(key)/2) {
		return "", false
	}
	return best, true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// levenshtein computes the classic edit distance between a and b. No pack
// example ships a fuzzy-matching library for this narrow "did you mean"
// use, so it is hand-rolled here rather than pulled in as a dependency
// (documented in DESIGN.md).
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// DefaultMaxParallelAsyncWorkers returns the worker count for the
// async-mirror writer pipeline: always 1, whatever the CPU count.
func DefaultMaxParallelAsyncWorkers() int {
	return 1 // §4.K's writer queue is a single-writer FIFO by spec.
}
