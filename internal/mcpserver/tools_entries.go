package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/kbservice"
	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/store"
)

func (s *Server) upsertKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	category, err := req.RequireString("category")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	args := req.GetArguments()
	created, err := s.svc.Upsert(ctx, kbservice.UpsertInput{
		ID:                id,
		Category:          category,
		Title:             title,
		Content:           content,
		Tags:              argStrings(args, "tags"),
		Metadata:          argMap(args, "metadata"),
		GenerateEmbedding: req.GetBool("generate_embedding", true),
	})
	if err != nil {
		return errResult(err), nil
	}

	status := "updated"
	if created {
		status = "created"
	}
	return jsonResult(map[string]string{"id": id, "status": status}), nil
}

func (s *Server) getKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	entry, related, err := s.svc.Get(id, req.GetBool("include_related", true))
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"entry":   entry,
		"related": related,
	}), nil
}

func (s *Server) listKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ListFilter{
		Category: req.GetString("category", ""),
		Tags:     argStrings(req.GetArguments(), "tags"),
		Limit:    req.GetInt("limit", 20),
		Offset:   req.GetInt("offset", 0),
	}
	if raw := req.GetString("date_after", ""); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return errResult(fmt.Errorf("%w: date_after: %s", apperr.ErrValidation, err)), nil
		}
		filter.DateAfter = t
	}

	entries, err := s.svc.List(filter)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	}), nil
}

func (s *Server) scanKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	results, err := s.svc.Search(query,
		req.GetInt("limit", 10),
		req.GetBool("include_transcripts", false))
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"count":   len(results),
		"results": results,
	}), nil
}

func (s *Server) queryKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("sql")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	rows, err := s.svc.RawQuery(query)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	}), nil
}

func (s *Server) findSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	filter := store.SimilarFilter{
		Threshold: req.GetFloat("threshold", 0.7),
		Category:  req.GetString("category", ""),
		Tags:      argStrings(req.GetArguments(), "tags"),
		Limit:     req.GetInt("limit", 10),
	}
	if raw := req.GetString("date_after", ""); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return errResult(fmt.Errorf("%w: date_after: %s", apperr.ErrValidation, err)), nil
		}
		filter.DateAfter = t
	}

	results, err := s.svc.FindSimilar(ctx, query, filter)
	if err != nil {
		return errResult(err), nil
	}
	if results == nil {
		results = []models.EntrySummary{}
	}
	return jsonResult(map[string]interface{}{
		"count":   len(results),
		"results": results,
	}), nil
}

func (s *Server) deleteKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	if err := s.svc.Delete(id); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]string{"id": id, "status": "deleted"}), nil
}

func (s *Server) addLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromID, err := req.RequireString("from_id")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	toID, err := req.RequireString("to_id")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	linkType := req.GetString("link_type", "related")
	if err := s.svc.AddLink(fromID, toID, linkType); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]string{
		"from_id":   fromID,
		"to_id":     toID,
		"link_type": linkType,
		"status":    "linked",
	}), nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
