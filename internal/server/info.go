package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/api/sheets/v4"
)

type sheetInfo struct {
	Title          string                 `json:"title"`
	SheetID        int64                  `json:"sheetId"`
	GridProperties *sheets.GridProperties `json:"gridProperties"`
}

type spreadsheetInfo struct {
	Title  string      `json:"title"`
	Sheets []sheetInfo `json:"sheets"`
}

func (s *Server) spreadsheetInfo(ctx context.Context, spreadsheetID string) (*spreadsheetInfo, error) {
	handle, err := s.services(ctx)
	if err != nil {
		return nil, err
	}

	spreadsheet, err := handle.Sheets.Spreadsheets.Get(spreadsheetID).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	info := &spreadsheetInfo{}
	if spreadsheet.Properties != nil {
		info.Title = spreadsheet.Properties.Title
	}
	for _, sh := range spreadsheet.Sheets {
		info.Sheets = append(info.Sheets, sheetInfo{
			Title:          sh.Properties.Title,
			SheetID:        sh.Properties.SheetId,
			GridProperties: sh.Properties.GridProperties,
		})
	}
	return info, nil
}

func (s *Server) handleGetSpreadsheetInfoTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	if spreadsheetID == "" {
		return respondError("spreadsheet_id is required")
	}

	info, err := s.spreadsheetInfo(ctx, spreadsheetID)
	if err != nil {
		return respondError("%v", err)
	}
	return respondJSON(info)
}

func (s *Server) handleSpreadsheetInfoResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI

	parts := strings.Split(uri, "://")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid URI format")
	}
	pathParts := strings.Split(parts[1], "/")
	if len(pathParts) < 1 || pathParts[0] == "" {
		return nil, fmt.Errorf("invalid URI format: missing spreadsheet_id")
	}
	spreadsheetID := pathParts[0]

	info, err := s.spreadsheetInfo(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal info: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
