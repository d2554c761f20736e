package extract

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Lookup walks a dotted key path ("props.pageProps.order.groups.0") through decoded
// JSON. Numeric segments index arrays.
func Lookup(obj any, path string) (any, bool) {
	if path == "" {
		return obj, obj != nil
	}
	current := obj
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, current != nil
}

// FirstOf returns the value at the first path that exists, together with that path.
func FirstOf(obj any, paths ...string) (any, string, bool) {
	for _, p := range paths {
		v, ok := Lookup(obj, p)
		if ok {
			return v, p, true
		}
	}
	return nil, "", false
}

// FirstArray returns the first non-empty array found at any of paths.
func FirstArray(obj any, paths ...string) []any {
	for _, p := range paths {
		v, ok := Lookup(obj, p)
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if ok && len(arr) > 0 {
			return arr
		}
	}
	return nil
}

// FirstString returns the first non-blank string (or number rendered as a string) at
// any of paths.
func FirstString(obj any, paths ...string) string {
	for _, p := range paths {
		v, ok := Lookup(obj, p)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case json.Number:
			return s.String()
		}
	}
	return ""
}

// FirstInt returns the first positive integer at any of paths.
func FirstInt(obj any, paths ...string) (int, bool) {
	for _, p := range paths {
		v, ok := Lookup(obj, p)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n >= 1 {
				return int(n), true
			}
		case json.Number:
			i, err := strconv.ParseFloat(n.String(), 64)
			if err == nil && i >= 1 {
				return int(i), true
			}
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err == nil && i >= 1 {
				return i, true
			}
		}
	}
	return 0, false
}

// FindDeep does a depth-first search (bounded by maxDepth) for the first object
// satisfying match.
func FindDeep(obj any, maxDepth int, match func(map[string]any) bool) (map[string]any, bool) {
	if maxDepth < 0 {
		return nil, false
	}
	switch node := obj.(type) {
	case map[string]any:
		if match(node) {
			return node, true
		}
		// sorted for deterministic results, map iteration order is random
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			found, ok := FindDeep(node[k], maxDepth-1, match)
			if ok {
				return found, true
			}
		}
	case []any:
		for _, v := range node {
			found, ok := FindDeep(v, maxDepth-1, match)
			if ok {
				return found, true
			}
		}
	}
	return nil, false
}
