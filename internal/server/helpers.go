package server

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/api/sheets/v4"
)

// rangeRef joins a sheet name with an optional A1 sub-range. Every handler
// must build ranges through this: bare sheet name when no sub-range is given,
// "sheet!range" otherwise.
func rangeRef(sheet, subrange string) string {
	if subrange == "" {
		return sheet
	}
	return fmt.Sprintf("%s!%s", sheet, subrange)
}

// findSheetID scans spreadsheet metadata for a sheet with the given title.
// A missing title is an expected outcome, not an error.
func findSheetID(spreadsheet *sheets.Spreadsheet, title string) (int64, bool) {
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, true
		}
	}
	return 0, false
}

// sheetID resolves a sheet title to its numeric id by fetching the
// spreadsheet metadata. found is false when the title does not exist;
// err reports backend failures only.
func (s *Server) sheetID(svc *sheets.Service, spreadsheetID, title string) (id int64, found bool, err error) {
	spreadsheet, err := svc.Spreadsheets.Get(spreadsheetID).Do()
	if err != nil {
		return 0, false, err
	}
	id, found = findSheetID(spreadsheet, title)
	return id, found, nil
}

func getArgs(request mcp.CallToolRequest) (map[string]any, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid arguments")
	}
	return args, nil
}

// argOr returns the argument under key when it has type T, else the fallback.
func argOr[T any](args map[string]any, key string, fallback T) T {
	if val, ok := args[key]; ok {
		if typed, ok := val.(T); ok {
			return typed
		}
	}
	return fallback
}

// decodeArg remarshals a loosely-typed argument into a concrete shape.
func decodeArg[T any](raw any) (T, error) {
	var out T
	data, err := json.Marshal(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

func respondJSON(result any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// respondError returns a structured error value in the response body. Used
// for recoverable conditions: bad arguments, sheet not found, backend
// rejections. The backend's message is attached verbatim; no retries.
func respondError(format string, args ...any) (*mcp.CallToolResult, error) {
	return respondJSON(map[string]string{"error": fmt.Sprintf(format, args...)})
}
