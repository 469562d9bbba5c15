package upstream

// Status is the normalized three-state view of an upstream job record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Upstream deployments disagree on status vocabulary. Both tables are data so
// a new vendor vocabulary is an additive change, not a new conditional.
var (
	// Numeric success-flag sentinel: 1 = success, 2 and 3 = distinct failure reasons.
	sentinelStatus = map[int]Status{
		1: StatusCompleted,
		2: StatusFailed,
		3: StatusFailed,
	}

	successTokens = map[string]struct{}{
		"success":   {},
		"succeed":   {},
		"completed": {},
		"done":      {},
	}

	failureTokens = map[string]struct{}{
		"failed": {},
		"error":  {},
		"fail":   {},
	}
)

var (
	// "code" is deliberately not a sentinel: vendor envelopes use it as an
	// error flag with inverted polarity (0 ok, non-zero error), so reading it
	// as a status would turn error envelopes into terminal success.
	sentinelKeys   = []string{"status", "success_flag"}
	textStatusKeys = []string{"task_status", "status", "state"}

	flatURLKeys   = []string{"video_urls", "urls", "result_urls", "resultUrls"}
	nestedURLKeys = []string{"videos", "images", "works"}

	errorMessageKeys = []string{"task_status_msg", "message", "error", "fail_reason"}
)

// Normalize collapses a raw upstream record into the three-state model. The
// numeric sentinel, when present and recognized, is authoritative and wins
// over any text field. Anything unrecognized is pending: an unknown vocabulary
// must never be mistaken for terminal state.
func Normalize(raw map[string]any) Status {
	for _, scope := range scopes(raw) {
		for _, key := range sentinelKeys {
			if n, ok := intField(scope, key); ok {
				if st, known := sentinelStatus[n]; known {
					return st
				}
			}
		}
	}

	for _, scope := range scopes(raw) {
		for _, key := range textStatusKeys {
			s, ok := scope[key].(string)
			if !ok {
				continue
			}
			if _, yes := successTokens[s]; yes {
				return StatusCompleted
			}
			if _, no := failureTokens[s]; no {
				return StatusFailed
			}
		}
	}

	return StatusPending
}

// ResultURLs returns every result URL found in the record, in order. Records
// nest their artifacts under several shapes: flat string arrays under synonym
// keys, or per-media arrays of objects carrying a url (possibly behind a
// resource wrapper).
func ResultURLs(raw map[string]any) []string {
	var urls []string
	for _, scope := range scopes(raw) {
		for _, key := range flatURLKeys {
			for _, v := range arrayField(scope, key) {
				if s, ok := v.(string); ok && s != "" {
					urls = append(urls, s)
				}
			}
		}
		for _, key := range nestedURLKeys {
			for _, v := range arrayField(scope, key) {
				if u := urlFromItem(v); u != "" {
					urls = append(urls, u)
				}
			}
		}
		if tr, ok := scope["task_result"].(map[string]any); ok {
			urls = append(urls, ResultURLs(tr)...)
		}
	}
	return urls
}

// FirstResultURL returns the first URL found in the record, or "".
func FirstResultURL(raw map[string]any) string {
	if urls := ResultURLs(raw); len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// ErrorMessage extracts the upstream failure message, or "".
func ErrorMessage(raw map[string]any) string {
	for _, scope := range scopes(raw) {
		for _, key := range errorMessageKeys {
			if s, ok := scope[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// scopes yields the record itself plus its data envelope, if any. Vendor
// records wrap everything under "data".
func scopes(raw map[string]any) []map[string]any {
	if raw == nil {
		return nil
	}
	out := []map[string]any{raw}
	if data, ok := raw["data"].(map[string]any); ok {
		out = append(out, data)
	}
	return out
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case int:
		return v, true
	}
	return 0, false
}

func arrayField(m map[string]any, key string) []any {
	arr, _ := m[key].([]any)
	return arr
}

func urlFromItem(v any) string {
	item, ok := v.(map[string]any)
	if !ok {
		// flat string inside a nested key still counts
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}
	if s, ok := item["url"].(string); ok && s != "" {
		return s
	}
	if res, ok := item["resource"].(map[string]any); ok {
		if s, ok := res["resource"].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := item["resource"].(string); ok && s != "" {
		return s
	}
	return ""
}
