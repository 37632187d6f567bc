package mltasks

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// FireArgs renders params as "--key=value" flags in the literal syntax the python
// entry points parse. Keys are sorted and nil values are omitted.
func FireArgs(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, "--"+k+"="+pyLiteral(params[k]))
	}
	return args
}

func pyLiteral(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case json.Number:
		return x.String()
	case []string:
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ",") + "]"
	case []any:
		items := make([]string, len(x))
		for i, item := range x {
			if s, ok := item.(string); ok {
				items[i] = strconv.Quote(s)
				continue
			}
			items[i] = pyLiteral(item)
		}
		return "[" + strings.Join(items, ",") + "]"
	case map[string]any:
		// Python accepts JSON objects as dict literals once booleans and null are spelled its way.
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return strings.NewReplacer(":true", ":True", ":false", ":False", ":null", ":None").Replace(string(data))
	default:
		return fmt.Sprint(x)
	}
}
