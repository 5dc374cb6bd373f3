package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/defrag"
	"github.com/starford/mimir/internal/export"
	"github.com/starford/mimir/internal/importer"
)

func (s *Server) listAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	item, err := req.RequireString("content")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	res, err := s.svc.ListAdd(id, item,
		req.GetString("title", ""),
		req.GetString("category", ""))
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) listRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	match, err := req.RequireString("match")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}

	res, err := s.svc.ListRemove(id, match)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) setSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := req.RequireInt("session")
	if err != nil {
		return errResult(fmt.Errorf("%w: %s", apperr.ErrValidation, err)), nil
	}
	if session <= 0 {
		return errResult(fmt.Errorf("%w: session must be positive", apperr.ErrValidation)), nil
	}

	s.svc.SetSession(int64(session))
	return jsonResult(map[string]interface{}{"session": session, "status": "set"}), nil
}

func (s *Server) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats(req.GetBool("detailed", false))
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(stats), nil
}

func (s *Server) defragReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := defrag.New(s.db, s.defrag).Run()
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(report), nil
}

func (s *Server) exportToMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("output_dir", s.exportDir)
	if dir == "" {
		return errResult(fmt.Errorf("%w: output_dir is not configured", apperr.ErrValidation)), nil
	}

	entries, err := s.db.All()
	if err != nil {
		return errResult(err), nil
	}
	files, err := export.Write(entries, dir)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"output_dir": dir,
		"files":      files,
	}), nil
}

func (s *Server) importFromMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("input_dir", s.importDir)
	if dir == "" {
		return errResult(fmt.Errorf("%w: input_dir is not configured", apperr.ErrValidation)), nil
	}

	imported, skipped, err := importer.ImportDir(s.db, dir)
	if err != nil {
		return errResult(err), nil
	}
	if imported > 0 {
		if err := s.mgr.Flush(); err != nil {
			return errResult(err), nil
		}
	}
	return jsonResult(map[string]interface{}{
		"input_dir": dir,
		"imported":  imported,
		"skipped":   skipped,
	}), nil
}

func (s *Server) generateEmbeddings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	updated, err := s.svc.GenerateEmbeddings(ctx,
		argStrings(args, "ids"),
		req.GetBool("regenerate", false))
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"updated": updated,
		"status":  "ok",
	}), nil
}
