package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mimir/internal/apperr"
)

func TestClassify(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"not found":  {fmt.Errorf("get: %w", apperr.ErrNotFound), "not_found"},
		"validation": {fmt.Errorf("%w: bad id", apperr.ErrValidation), "validation"},
		"protected":  {apperr.ErrProtectedEntry, "protected_entry"},
		"embeddings": {apperr.ErrNoEmbeddings, "no_embeddings"},
		"dimension":  {fmt.Errorf("store: %w: 2 vs 3", apperr.ErrDimension), "dimension_mismatch"},
		"other":      {errors.New("boom"), "internal"},
	}
	for name, tc := range cases {
		if got := classify(tc.err); got != tc.want {
			t.Errorf("%s: classify = %q, want %q", name, got, tc.want)
		}
	}
}

func TestErrResultPayload(t *testing.T) {
	res := errResult(fmt.Errorf("entry %q: %w", "x", apperr.ErrNotFound))
	if !res.IsError {
		t.Error("result not marked as error")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", res.Content[0])
	}

	var payload errorPayload
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Status != "error" || payload.ErrorType != "not_found" || payload.Message == "" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestErrResultDetails(t *testing.T) {
	err := apperr.WithDetails(
		fmt.Errorf("%w: no item matching %q", apperr.ErrNotFound, "x"),
		map[string]interface{}{"items": []string{"- first", "- second"}})
	res := errResult(err)
	text := res.Content[0].(mcp.TextContent)

	var payload errorPayload
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ErrorType != "not_found" {
		t.Errorf("error_type = %q", payload.ErrorType)
	}
	items, ok := payload.Details["items"].([]interface{})
	if !ok || len(items) != 2 || items[0] != "- first" {
		t.Errorf("details = %v", payload.Details)
	}
}

func TestArgCoercion(t *testing.T) {
	args := map[string]interface{}{
		"tags":     []interface{}{"go", "infra", 42},
		"metadata": map[string]interface{}{"source": "review"},
	}
	if got := argStrings(args, "tags"); len(got) != 2 || got[0] != "go" {
		t.Errorf("argStrings = %v", got)
	}
	if got := argStrings(args, "missing"); got != nil {
		t.Errorf("missing key = %v", got)
	}
	if got := argMap(args, "metadata"); got["source"] != "review" {
		t.Errorf("argMap = %v", got)
	}
}
