// Package server exposes the spreadsheet tool surface over MCP.
package server

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/api/option"

	"github.com/sheetkit/gsheets-mcp/internal/backend"
	"github.com/sheetkit/gsheets-mcp/internal/config"
	"github.com/sheetkit/gsheets-mcp/internal/googleauth"
)

const (
	serverName    = "Google Spreadsheet"
	serverVersion = "1.1.0"
)

// Server ties the MCP tool surface to the Google backend.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *backend.Provider
	mcp      *server.MCPServer
}

// New builds the server. The credential resolver variant is fixed here, once,
// from configuration: provider-delegated when OAuth provider settings are
// present, the local fallback chain otherwise.
func New(cfg *config.Config, logger *slog.Logger, extra ...option.ClientOption) *Server {
	var resolver backend.CredentialResolver
	switch cfg.AuthMode() {
	case config.AuthModeDelegated:
		logger.Info("using provider-delegated authentication")
		resolver = googleauth.NewDelegatedResolver()
	default:
		resolver = googleauth.NewResolver(cfg, logger)
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		provider: backend.NewProvider(resolver, cfg.DriveFolderID, extra...),
	}

	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)
	s.registerTools()
	s.registerResources()

	return s
}

// services returns the shared backend handle, triggering one-time credential
// resolution on the first tool call.
func (s *Server) services(ctx context.Context) (*backend.Handle, error) {
	return s.provider.Services(ctx)
}

// Run serves MCP over the configured transport until the context is
// cancelled (network transports) or the stream closes (stdio).
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case config.TransportStdio:
		s.logger.Info("serving MCP over stdio")
		return server.ServeStdio(s.mcp)

	case config.TransportSSE:
		sse := server.NewSSEServer(s.mcp,
			server.WithSSEContextFunc(googleauth.BearerFromRequest),
		)
		s.logger.Info("serving MCP over SSE", "addr", s.cfg.Addr())
		return serveUntilDone(ctx, sse.Shutdown, func() error { return sse.Start(s.cfg.Addr()) })

	default:
		httpSrv := server.NewStreamableHTTPServer(s.mcp,
			server.WithHTTPContextFunc(googleauth.BearerFromRequest),
		)
		s.logger.Info("serving MCP over streamable HTTP", "addr", s.cfg.Addr())
		return serveUntilDone(ctx, httpSrv.Shutdown, func() error { return httpSrv.Start(s.cfg.Addr()) })
	}
}

func serveUntilDone(ctx context.Context, shutdown func(context.Context) error, start func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return shutdown(context.Background())
	}
}

func (s *Server) registerTools() {
	// Sheet data operations
	s.mcp.AddTool(mcp.NewTool("get_sheet_data",
		mcp.WithDescription("Get data from a specific sheet in a Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithString("range", mcp.Description("Optional cell range in A1 notation, e.g. 'A1:C10'")),
		mcp.WithBoolean("include_grid_data", mcp.Description("If true, includes cell formatting and metadata (large responses)")),
	), s.handleGetSheetData)

	s.mcp.AddTool(mcp.NewTool("get_sheet_formulas",
		mcp.WithDescription("Get formulas from a specific sheet in a Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithString("range", mcp.Description("Optional cell range in A1 notation")),
	), s.handleGetSheetFormulas)

	s.mcp.AddTool(mcp.NewTool("update_cells",
		mcp.WithDescription("Update cells in a Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithString("range", mcp.Required(), mcp.Description("Cell range in A1 notation")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("2D array of values to write")),
	), s.handleUpdateCells)

	s.mcp.AddTool(mcp.NewTool("batch_update_cells",
		mcp.WithDescription("Batch update multiple ranges in a Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithObject("ranges", mcp.Required(), mcp.Description("Object mapping range strings to 2D arrays of values")),
	), s.handleBatchUpdateCells)

	s.mcp.AddTool(mcp.NewTool("append_values",
		mcp.WithDescription("Append rows after the last row with data in a sheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("2D array of values to append")),
	), s.handleAppendValues)

	s.mcp.AddTool(mcp.NewTool("clear_values",
		mcp.WithDescription("Clear a range of cells in a Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithString("range", mcp.Required(), mcp.Description("Cell range in A1 notation")),
	), s.handleClearValues)

	// Row and column operations
	s.mcp.AddTool(mcp.NewTool("add_rows",
		mcp.WithDescription("Insert rows into a sheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithNumber("count", mcp.Required(), mcp.Description("Number of rows to add")),
		mcp.WithNumber("start_row", mcp.Description("0-based row index to start inserting at")),
	), s.handleAddRows)

	s.mcp.AddTool(mcp.NewTool("add_columns",
		mcp.WithDescription("Insert columns into a sheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet")),
		mcp.WithNumber("count", mcp.Required(), mcp.Description("Number of columns to add")),
		mcp.WithNumber("start_column", mcp.Description("0-based column index to start inserting at")),
	), s.handleAddColumns)

	// Sheet management
	s.mcp.AddTool(mcp.NewTool("list_sheets",
		mcp.WithDescription("List all sheet names in a Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
	), s.handleListSheets)

	s.mcp.AddTool(mcp.NewTool("create_sheet",
		mcp.WithDescription("Create a new sheet tab in an existing Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("title", mcp.Required(), mcp.Description("The title for the new sheet")),
	), s.handleCreateSheet)

	s.mcp.AddTool(mcp.NewTool("copy_sheet",
		mcp.WithDescription("Copy a sheet from one spreadsheet to another"),
		mcp.WithString("src_spreadsheet", mcp.Required(), mcp.Description("Source spreadsheet ID")),
		mcp.WithString("src_sheet", mcp.Required(), mcp.Description("Source sheet name")),
		mcp.WithString("dst_spreadsheet", mcp.Required(), mcp.Description("Destination spreadsheet ID")),
		mcp.WithString("dst_sheet", mcp.Required(), mcp.Description("Destination sheet name")),
	), s.handleCopySheet)

	s.mcp.AddTool(mcp.NewTool("rename_sheet",
		mcp.WithDescription("Rename a sheet in a Google Spreadsheet"),
		mcp.WithString("spreadsheet", mcp.Required(), mcp.Description("Spreadsheet ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Current sheet name")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New sheet name")),
	), s.handleRenameSheet)

	s.mcp.AddTool(mcp.NewTool("delete_sheet",
		mcp.WithDescription("Delete a sheet tab from a Google Spreadsheet"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("The name of the sheet to delete")),
	), s.handleDeleteSheet)

	// Spreadsheet operations
	s.mcp.AddTool(mcp.NewTool("get_spreadsheet_info",
		mcp.WithDescription("Get metadata about a Google Spreadsheet: title, sheets, grid sizes"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
	), s.handleGetSpreadsheetInfoTool)

	s.mcp.AddTool(mcp.NewTool("list_spreadsheets",
		mcp.WithDescription("List spreadsheets in the configured Google Drive folder (or 'My Drive')"),
	), s.handleListSpreadsheets)

	s.mcp.AddTool(mcp.NewTool("create_spreadsheet",
		mcp.WithDescription("Create a new Google Spreadsheet"),
		mcp.WithString("title", mcp.Required(), mcp.Description("The title of the new spreadsheet")),
	), s.handleCreateSpreadsheet)

	// Multi-target queries
	s.mcp.AddTool(mcp.NewTool("get_multiple_sheet_data",
		mcp.WithDescription("Get data from multiple ranges across Google Spreadsheets; per-query errors are reported inline"),
		mcp.WithObject("queries", mcp.Required(), mcp.Description("List of objects with spreadsheet_id, sheet, and range")),
	), s.handleGetMultipleSheetData)

	s.mcp.AddTool(mcp.NewTool("get_multiple_spreadsheet_summary",
		mcp.WithDescription("Summarize multiple spreadsheets: sheet names, headers, and first rows"),
		mcp.WithObject("spreadsheet_ids", mcp.Required(), mcp.Description("List of spreadsheet IDs")),
		mcp.WithNumber("rows_to_fetch", mcp.Description("Rows (including header) to fetch per sheet, default 5")),
	), s.handleGetMultipleSpreadsheetSummary)

	// Sharing
	s.mcp.AddTool(mcp.NewTool("share_spreadsheet",
		mcp.WithDescription("Share a Google Spreadsheet with multiple users; reports successes and failures separately"),
		mcp.WithString("spreadsheet_id", mcp.Required(), mcp.Description("The ID of the spreadsheet")),
		mcp.WithObject("recipients", mcp.Required(), mcp.Description("List of objects with email_address and role (reader/commenter/writer)")),
		mcp.WithBoolean("send_notification", mcp.Description("Send notification emails, default true")),
	), s.handleShareSpreadsheet)

	if s.cfg.AuthMode() == config.AuthModeDelegated {
		s.mcp.AddTool(mcp.NewTool("get_auth_user_info",
			mcp.WithDescription("Get profile information for the authenticated user of this request"),
		), s.handleGetAuthUserInfo)
	}
}

func (s *Server) registerResources() {
	resource := mcp.Resource{
		URI:         "spreadsheet://{spreadsheet_id}/info",
		Name:        "Spreadsheet Info",
		Description: "Basic information about a Google Spreadsheet",
		MIMEType:    "application/json",
	}
	s.mcp.AddResource(resource, s.handleSpreadsheetInfoResource)
}
