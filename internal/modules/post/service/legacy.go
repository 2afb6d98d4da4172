package service

import (
	"fmt"
	"sort"
)

// NormalizeLikedBy converts the shapes legacy documents used for liked_by
// into a de-duplicated id list. Arrays keep first-seen order, maps keep
// their truthy keys sorted, a single string becomes one element and null
// becomes empty. Anything else is rejected.
func NormalizeLikedBy(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case string:
		if v == "" {
			return []string{}, nil
		}
		return []string{v}, nil
	case []string:
		return dedupe(v), nil
	case []interface{}:
		ids := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("liked_by[%d]: expected string, got %T", i, item)
			}
			if s != "" {
				ids = append(ids, s)
			}
		}
		return dedupe(ids), nil
	case map[string]interface{}:
		ids := make([]string, 0, len(v))
		for k, flag := range v {
			if k != "" && truthy(flag) {
				ids = append(ids, k)
			}
		}
		sort.Strings(ids)
		return ids, nil
	case map[string]bool:
		ids := make([]string, 0, len(v))
		for k, flag := range v {
			if k != "" && flag {
				ids = append(ids, k)
			}
		}
		sort.Strings(ids)
		return ids, nil
	default:
		return nil, fmt.Errorf("liked_by: unsupported shape %T", raw)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
