package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gridwatch/dayahead/internal/apperror"
)

// Resolve walks a slash-separated path into a decoded JSON value. A segment
// of digits indexes a sequence, anything else looks up a mapping key, and the
// empty path resolves to the root. Failures name the exact sub-path that
// could not be resolved.
func Resolve(root any, path string) (any, error) {
	current := root
	var walked []string

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		walked = append(walked, segment)

		next, ok := step(current, segment)
		if !ok {
			return nil, apperror.New(apperror.NotFound,
				"Path not found: /"+strings.Join(walked, "/"))
		}
		current = next
	}
	return current, nil
}

func step(current any, segment string) (any, bool) {
	if isIndex(segment) {
		seq, ok := current.([]any)
		if !ok {
			return nil, false
		}
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(seq) {
			return nil, false
		}
		return seq[idx], true
	}

	m, ok := current.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[segment]
	return v, ok
}

func isIndex(segment string) bool {
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(segment) > 0
}

// ResolveDay answers a day-relative query. Paths whose first segment is
// numeric are the hour shorthand into the hourly array and must name an hour
// in [0,23]; everything else falls through to generic resolution.
func ResolveDay(root any, path string) (any, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return root, nil
	}

	segments := strings.Split(path, "/")
	if isIndex(segments[0]) {
		hour, err := strconv.Atoi(segments[0])
		if err != nil || hour > 23 {
			return nil, apperror.New(apperror.Validation,
				fmt.Sprintf("hour must be between 0 and 23, got %q", segments[0]))
		}
		segments = append([]string{"hourly"}, segments...)
		return Resolve(root, strings.Join(segments, "/"))
	}

	return Resolve(root, path)
}

// ToGeneric converts a typed value into the decoded-JSON form the resolver
// navigates.
func ToGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode for resolution: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode for resolution: %w", err)
	}
	return generic, nil
}
