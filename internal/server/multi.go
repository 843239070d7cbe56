package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// rangeQuery is one entry of a get_multiple_sheet_data call.
type rangeQuery struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Sheet         string `json:"sheet"`
	Range         string `json:"range"`
}

// handleGetMultipleSheetData executes each query in order. A failing query
// puts an error marker in its result slot; the batch itself never fails
// because one item did.
func (s *Server) handleGetMultipleSheetData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	queriesRaw, ok := args["queries"]
	if !ok {
		return respondError("queries is required")
	}
	queries, err := decodeArg[[]rangeQuery](queriesRaw)
	if err != nil {
		return respondError("invalid queries format: %v", err)
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	results := make([]map[string]any, 0, len(queries))
	for _, q := range queries {
		item := map[string]any{
			"spreadsheet_id": q.SpreadsheetID,
			"sheet":          q.Sheet,
			"range":          q.Range,
		}

		if q.SpreadsheetID == "" || q.Sheet == "" || q.Range == "" {
			item["error"] = "Missing required keys (spreadsheet_id, sheet, range)"
			results = append(results, item)
			continue
		}

		valuesResult, err := handle.Sheets.Spreadsheets.Values.Get(q.SpreadsheetID, rangeRef(q.Sheet, q.Range)).Do()
		if err != nil {
			item["error"] = err.Error()
			results = append(results, item)
			continue
		}

		item["data"] = valuesResult.Values
		results = append(results, item)
	}

	return respondJSON(results)
}

// handleGetMultipleSpreadsheetSummary fetches metadata for each spreadsheet
// and a bounded first-rows slice for each of its sheets, splitting the first
// row out as headers. Failures at either level are captured as structured
// error fields next to whatever partial results were gathered.
func (s *Server) handleGetMultipleSpreadsheetSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	idsRaw, ok := args["spreadsheet_ids"]
	if !ok {
		return respondError("spreadsheet_ids is required")
	}
	spreadsheetIDs, err := decodeArg[[]string](idsRaw)
	if err != nil {
		return respondError("invalid spreadsheet_ids format: %v", err)
	}

	rowsToFetch := max(1, int(argOr(args, "rows_to_fetch", float64(5))))

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	summaries := make([]map[string]any, 0, len(spreadsheetIDs))
	for _, spreadsheetID := range spreadsheetIDs {
		summary := map[string]any{
			"spreadsheet_id": spreadsheetID,
			"title":          "Unknown Title",
			"sheets":         []map[string]any{},
			"error":          nil,
		}

		spreadsheet, err := handle.Sheets.Spreadsheets.Get(spreadsheetID).
			Fields("properties.title,sheets(properties(title,sheetId))").
			Do()
		if err != nil {
			summary["error"] = fmt.Sprintf("Error fetching spreadsheet %s: %v", spreadsheetID, err)
			summaries = append(summaries, summary)
			continue
		}

		if spreadsheet.Properties != nil && spreadsheet.Properties.Title != "" {
			summary["title"] = spreadsheet.Properties.Title
		}

		sheetSummaries := make([]map[string]any, 0, len(spreadsheet.Sheets))
		for _, sh := range spreadsheet.Sheets {
			sheetSummary := map[string]any{
				"title":      sh.Properties.Title,
				"sheet_id":   sh.Properties.SheetId,
				"headers":    []any{},
				"first_rows": []any{},
				"error":      nil,
			}

			if sh.Properties.Title == "" {
				sheetSummary["error"] = "Sheet title not found"
				sheetSummaries = append(sheetSummaries, sheetSummary)
				continue
			}

			// All columns of the first rowsToFetch rows, e.g. "Data!A1:5".
			firstRows := rangeRef(sh.Properties.Title, fmt.Sprintf("A1:%d", rowsToFetch))

			valuesResult, err := handle.Sheets.Spreadsheets.Values.Get(spreadsheetID, firstRows).Do()
			if err != nil {
				sheetSummary["error"] = fmt.Sprintf("Error fetching data for sheet %s: %v", sh.Properties.Title, err)
				sheetSummaries = append(sheetSummaries, sheetSummary)
				continue
			}

			if len(valuesResult.Values) > 0 {
				sheetSummary["headers"] = valuesResult.Values[0]
				if len(valuesResult.Values) > 1 {
					sheetSummary["first_rows"] = valuesResult.Values[1:]
				}
			}

			sheetSummaries = append(sheetSummaries, sheetSummary)
		}

		summary["sheets"] = sheetSummaries
		summaries = append(summaries, summary)
	}

	return respondJSON(summaries)
}
