package cleaning

import (
	"bytes"
	"encoding/json"
	"strings"
)

// decodeJSON parses arbitrary JSON keeping numbers as json.Number so
// coordinates and numeric ids keep their original text.
func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// truthy mirrors the loose emptiness check scraped documents are written
// against: "", 0, false and null are empty; objects and arrays are not.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

// scalarString renders strings and numbers; anything else is "".
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// elementString renders one array element for joining.
func elementString(v interface{}) string {
	switch v.(type) {
	case nil:
		return ""
	case map[string]interface{}, []interface{}:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return scalarString(v)
	}
}

// first returns the first truthy value among keys.
func first(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v := m[k]; truthy(v) {
			return v
		}
	}
	return nil
}

// firstString is first rendered as a scalar string.
func firstString(m map[string]interface{}, keys ...string) string {
	return scalarString(first(m, keys...))
}

// commaString joins arrays with ", " and passes strings through.
func commaString(v interface{}) string {
	switch t := v.(type) {
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = elementString(e)
		}
		return strings.Join(parts, ", ")
	case string:
		return t
	default:
		return ""
	}
}

// tagList accepts an array, or a comma separated string, and always returns
// a non-nil slice.
func tagList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		tags := make([]string, len(t))
		for i, e := range t {
			tags[i] = elementString(e)
		}
		return tags
	case string:
		if t == "" {
			return []string{}
		}
		parts := strings.Split(t, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return []string{}
	}
}

func object(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}
