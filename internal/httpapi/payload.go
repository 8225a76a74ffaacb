package httpapi

// Webhook callers disagree on where the task identifier lives in the
// payload. The shapes are an ordered rule list so new callers are additive.

type extractRule struct {
	name    string
	extract func(map[string]any) string
}

var taskIDRules = []extractRule{
	{"data.id", func(p map[string]any) string {
		data, ok := p["data"].(map[string]any)
		if !ok {
			return ""
		}
		s, _ := data["id"].(string)
		return s
	}},
	{"id", func(p map[string]any) string {
		s, _ := p["id"].(string)
		return s
	}},
	{"page_id", func(p map[string]any) string {
		s, _ := p["page_id"].(string)
		return s
	}},
}

// extractTaskID tries each payload shape in priority order and returns the
// first match plus the rule that produced it.
func extractTaskID(payload map[string]any) (id, rule string) {
	for _, r := range taskIDRules {
		if v := r.extract(payload); v != "" {
			return v, r.name
		}
	}
	return "", ""
}
