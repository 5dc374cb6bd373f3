package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mimir/internal/apperr"
)

// errorPayload is the structured error body every tool returns on failure,
// so callers can branch on error_type instead of parsing prose.
type errorPayload struct {
	Status    string                 `json:"status"`
	ErrorType string                 `json:"error_type"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Errorf("mcpserver: encode result: %w", err))
	}
	return mcp.NewToolResultText(string(out))
}

func errResult(err error) *mcp.CallToolResult {
	payload := errorPayload{
		Status:    "error",
		ErrorType: classify(err),
		Message:   err.Error(),
		Details:   apperr.Details(err),
	}
	out, _ := json.Marshal(payload)
	res := mcp.NewToolResultText(string(out))
	res.IsError = true
	return res
}

func classify(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrProtectedEntry):
		return "protected_entry"
	case errors.Is(err, apperr.ErrNoEmbeddings):
		return "no_embeddings"
	case errors.Is(err, apperr.ErrDimension):
		return "dimension_mismatch"
	default:
		return "internal"
	}
}

// argStrings coerces a JSON array argument into a string slice.
func argStrings(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argMap(args map[string]interface{}, key string) map[string]interface{} {
	m, _ := args[key].(map[string]interface{})
	return m
}
