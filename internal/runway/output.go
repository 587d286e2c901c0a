package runway

import "encoding/json"

// ExtractOutputURL pulls a media URL out of a task output. Accepted shapes, in
// order: {"url": u}, {"urls": [u, ...]}, [u, ...], [{"url": u}, ...].
// Each key is checked on its own, so a malformed field does not hide a later
// one. It returns "" when none match.
func ExtractOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err == nil {
		if url := stringValue(object["url"]); url != "" {
			return url
		}
		return firstString(object["urls"])
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return ""
	}
	if url := stringValue(list[0]); url != "" {
		return url
	}
	var item map[string]json.RawMessage
	if err := json.Unmarshal(list[0], &item); err == nil {
		return stringValue(item["url"])
	}
	return ""
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func firstString(raw json.RawMessage) string {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return ""
	}
	return stringValue(list[0])
}
