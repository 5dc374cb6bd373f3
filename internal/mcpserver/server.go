// Package mcpserver exposes the knowledge base as MCP (Model Context
// Protocol) tools over stdio transport.
package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mimir/internal/defrag"
	"github.com/starford/mimir/internal/kbservice"
	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/persist"
	"github.com/starford/mimir/internal/store"
)

// Server wraps the MCP server with the knowledge base tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *kbservice.Service
	db     *store.DB
	mgr    *persist.Manager
	defrag defrag.Options
	// Default directories for the markdown round-trip tools.
	exportDir string
	importDir string
	logger    *slog.Logger
}

// New creates an MCP server with all tools registered.
func New(svc *kbservice.Service, db *store.DB, mgr *persist.Manager,
	defragOpts defrag.Options, exportDir, importDir string, logger *slog.Logger) *Server {

	s := &Server{
		svc:       svc,
		db:        db,
		mgr:       mgr,
		defrag:    defragOpts,
		exportDir: exportDir,
		importDir: importDir,
		logger:    logger,
	}

	s.mcp = server.NewMCPServer(
		"Mimir",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("upsert_knowledge",
		mcp.WithDescription("Create or replace a knowledge entry. The first write for an id "+
			"creates the entry, later writes replace every field except the creation time. "+
			"List-managed entries (todo-*, accumulator-*) are rejected; use list_add/list_remove."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Stable kebab-case identifier (e.g. 'caching-strategy')")),
		mcp.WithString("category", mcp.Required(),
			mcp.Description("Entry category, typically one of: "+strings.Join(models.Categories, ", "))),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithArray("tags", mcp.Description("Lowercase tags for filtering")),
		mcp.WithObject("metadata", mcp.Description("Free-form JSON metadata")),
		mcp.WithBoolean("generate_embedding", mcp.Description("Generate a semantic vector (default true)")),
	), s.upsertKnowledge)

	s.mcp.AddTool(mcp.NewTool("get_knowledge",
		mcp.WithDescription("Read a single entry by id, optionally with its linked entries."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithBoolean("include_related", mcp.Description("Include linked entries (default true)")),
	), s.getKnowledge)

	s.mcp.AddTool(mcp.NewTool("list_knowledge",
		mcp.WithDescription("List entry summaries, newest first, filtered by category, tags, or date."),
		mcp.WithString("category", mcp.Description("Only entries in this category")),
		mcp.WithArray("tags", mcp.Description("Only entries carrying at least one listed tag")),
		mcp.WithString("date_after", mcp.Description("Only entries updated after this RFC 3339 date")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Pagination offset")),
	), s.listKnowledge)

	s.mcp.AddTool(mcp.NewTool("scan_knowledge",
		mcp.WithDescription("Full-text search over titles and content, ranked by relevance. "+
			"Transcript entries are excluded unless asked for."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		mcp.WithBoolean("include_transcripts", mcp.Description("Include transcript-category entries")),
	), s.scanKnowledge)

	s.mcp.AddTool(mcp.NewTool("query_knowledge",
		mcp.WithDescription("Run a read-only SQL SELECT against the knowledge tables "+
			"(knowledge, links, kb_access). Anything but SELECT is rejected."),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SELECT statement")),
	), s.queryKnowledge)

	s.mcp.AddTool(mcp.NewTool("find_similar",
		mcp.WithDescription("Semantic similarity search: embeds the query text and ranks entries "+
			"by cosine similarity of their stored vectors."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity score (default 0.7)")),
		mcp.WithString("category", mcp.Description("Restrict to one category")),
		mcp.WithArray("tags", mcp.Description("Only entries carrying at least one listed tag")),
		mcp.WithString("date_after", mcp.Description("Only entries updated after this date (RFC3339 or YYYY-MM-DD)")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
	), s.findSimilar)

	s.mcp.AddTool(mcp.NewTool("delete_knowledge",
		mcp.WithDescription("Delete an entry by id. Links touching the entry are removed too."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	), s.deleteKnowledge)

	s.mcp.AddTool(mcp.NewTool("add_link",
		mcp.WithDescription("Record a typed relation between two existing entries. "+
			"Re-adding an existing pair is a no-op."),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Source entry id")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Target entry id")),
		mcp.WithString("link_type", mcp.Description("Relation type (default 'related')")),
	), s.addLink)

	s.mcp.AddTool(mcp.NewTool("list_add",
		mcp.WithDescription("Append an item to a list entry ('- item' format), creating the "+
			"entry when it does not exist. The write path for todo-*/accumulator-* entries."),
		mcp.WithString("id", mcp.Required(), mcp.Description("List entry id (e.g. 'accumulator-corrections')")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Item text, stored as '- <content>'")),
		mcp.WithString("title", mcp.Description("Title when creating a new list")),
		mcp.WithString("category", mcp.Description("Category when creating a new list (default 'other')")),
	), s.listAdd)

	s.mcp.AddTool(mcp.NewTool("list_remove",
		mcp.WithDescription("Remove the first list item containing the match text (case-insensitive)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("List entry id")),
		mcp.WithString("match", mcp.Required(), mcp.Description("Substring identifying the item")),
	), s.listRemove)

	s.mcp.AddTool(mcp.NewTool("set_session",
		mcp.WithDescription("Set the session number stamped on the access log. "+
			"Without a session, access logging is off."),
		mcp.WithNumber("session", mcp.Required(), mcp.Description("Session number (positive integer)")),
	), s.setSession)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Aggregate counters: entries, categories, embeddings, tags, links."),
		mcp.WithBoolean("detailed", mcp.Description("Include per-category counts")),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("defrag_report",
		mcp.WithDescription("Analyze the knowledge base for duplicates, conflicts, fragmented "+
			"topics, orphans, and obsolete entries. Read-only."),
	), s.defragReport)

	s.mcp.AddTool(mcp.NewTool("export_to_markdown",
		mcp.WithDescription("Write every entry as a markdown file with YAML frontmatter, "+
			"grouped into per-category directories."),
		mcp.WithString("output_dir", mcp.Description("Target directory (default from configuration)")),
	), s.exportToMarkdown)

	s.mcp.AddTool(mcp.NewTool("import_from_markdown",
		mcp.WithDescription("Import markdown files with YAML frontmatter from a directory tree. "+
			"Files without a parseable id and title are skipped and counted."),
		mcp.WithString("input_dir", mcp.Description("Source directory (default from configuration)")),
	), s.importFromMarkdown)

	s.mcp.AddTool(mcp.NewTool("generate_embeddings",
		mcp.WithDescription("Backfill semantic vectors for entries missing one, or for the "+
			"given ids. Set regenerate to recompute existing vectors too."),
		mcp.WithArray("ids", mcp.Description("Specific entry ids (default: all without a vector)")),
		mcp.WithBoolean("regenerate", mcp.Description("Recompute vectors that already exist")),
	), s.generateEmbeddings)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Listen serves stdio until ctx is cancelled or stdin closes.
func (s *Server) Listen(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}
