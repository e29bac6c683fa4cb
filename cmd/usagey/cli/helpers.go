package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/usagey/usagey-go/pkg/usagey"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// DescribeError renders err for the terminal. API errors include their code
// and, when present, the retry hint and per-field validation messages. A
// wrapped or joined error is printed in full first, followed by the details
// of the first API error it carries.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	apiErr, ok := usagey.AsError(err)
	if !ok {
		return "Error: " + err.Error()
	}

	var b strings.Builder
	if direct, isDirect := err.(*usagey.Error); isDirect && direct == apiErr {
		fmt.Fprintf(&b, "Error [%s]: %s", apiErr.Code, apiErr.Message)
	} else {
		fmt.Fprintf(&b, "Error: %s\n  code: %s", err.Error(), apiErr.Code)
	}
	if apiErr.Status > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", apiErr.Status)
	}
	if apiErr.RetryAfter != nil {
		fmt.Fprintf(&b, "\n  retry after: %ds", *apiErr.RetryAfter)
	}
	if apiErr.Limit != nil && apiErr.Remaining != nil {
		fmt.Fprintf(&b, "\n  remaining: %d/%d", *apiErr.Remaining, *apiErr.Limit)
	}
	fields := make([]string, 0, len(apiErr.Errors))
	for f := range apiErr.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", f, strings.Join(apiErr.Errors[f], "; "))
	}
	return b.String()
}

// parseMetadata turns repeated key=value flags into a metadata map. Values
// that parse as JSON (numbers, booleans, objects) keep their type.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q (expected key=value)", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}
