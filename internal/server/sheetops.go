package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/api/sheets/v4"
)

// insertDimension backs both add_rows and add_columns; dimension is the
// Sheets API enum "ROWS" or "COLUMNS".
func (s *Server) insertDimension(ctx context.Context, request mcp.CallToolRequest, dimension, startKey string) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")
	count := int64(argOr(args, "count", float64(0)))

	if spreadsheetID == "" || sheet == "" || count <= 0 {
		return respondError("spreadsheet_id, sheet, and a positive count are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	sheetID, found, err := s.sheetID(handle.Sheets, spreadsheetID, sheet)
	if err != nil {
		return respondError("failed to get spreadsheet: %v", err)
	}
	if !found {
		return respondError("sheet '%s' not found", sheet)
	}

	start := int64(argOr(args, startKey, float64(0)))

	result, err := handle.Sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  dimension,
					StartIndex: start,
					EndIndex:   start + count,
				},
				InheritFromBefore: start > 0,
			},
		}},
	}).Do()
	if err != nil {
		return respondError("failed to insert %s: %v", dimension, err)
	}

	return respondJSON(result)
}

func (s *Server) handleAddRows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.insertDimension(ctx, request, "ROWS", "start_row")
}

func (s *Server) handleAddColumns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.insertDimension(ctx, request, "COLUMNS", "start_column")
}

func (s *Server) handleListSheets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	if spreadsheetID == "" {
		return respondError("spreadsheet_id is required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	spreadsheet, err := handle.Sheets.Spreadsheets.Get(spreadsheetID).Do()
	if err != nil {
		return respondError("failed to get spreadsheet: %v", err)
	}

	sheetNames := make([]string, 0, len(spreadsheet.Sheets))
	for _, sh := range spreadsheet.Sheets {
		sheetNames = append(sheetNames, sh.Properties.Title)
	}

	return respondJSON(sheetNames)
}

func (s *Server) handleCreateSheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	title := argOr(args, "title", "")

	if spreadsheetID == "" || title == "" {
		return respondError("spreadsheet_id and title are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	result, err := handle.Sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}).Do()
	if err != nil {
		return respondError("failed to create sheet: %v", err)
	}

	if len(result.Replies) > 0 && result.Replies[0].AddSheet != nil {
		props := result.Replies[0].AddSheet.Properties
		return respondJSON(map[string]any{
			"sheetId":       props.SheetId,
			"title":         props.Title,
			"index":         props.Index,
			"spreadsheetId": spreadsheetID,
		})
	}

	return respondJSON(result)
}

// handleCopySheet copies a sheet into the destination spreadsheet and, when
// the backend's assigned title differs from the requested one, renames the
// copy in a second call. The response reports the two sub-results under
// separate keys; "rename" is present only when a rename was issued.
func (s *Server) handleCopySheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	srcSpreadsheet := argOr(args, "src_spreadsheet", "")
	srcSheet := argOr(args, "src_sheet", "")
	dstSpreadsheet := argOr(args, "dst_spreadsheet", "")
	dstSheet := argOr(args, "dst_sheet", "")

	if srcSpreadsheet == "" || srcSheet == "" || dstSpreadsheet == "" || dstSheet == "" {
		return respondError("src_spreadsheet, src_sheet, dst_spreadsheet, and dst_sheet are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	srcSheetID, found, err := s.sheetID(handle.Sheets, srcSpreadsheet, srcSheet)
	if err != nil {
		return respondError("failed to get source spreadsheet: %v", err)
	}
	if !found {
		return respondError("source sheet '%s' not found", srcSheet)
	}

	copyResult, err := handle.Sheets.Spreadsheets.Sheets.CopyTo(srcSpreadsheet, srcSheetID, &sheets.CopySheetToAnotherSpreadsheetRequest{
		DestinationSpreadsheetId: dstSpreadsheet,
	}).Do()
	if err != nil {
		return respondError("failed to copy sheet: %v", err)
	}

	result := map[string]any{"copy": copyResult}

	if copyResult.Title != dstSheet {
		renameResult, err := handle.Sheets.Spreadsheets.BatchUpdate(dstSpreadsheet, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId: copyResult.SheetId,
						Title:   dstSheet,
					},
					Fields: "title",
				},
			}},
		}).Do()
		if err != nil {
			// The copy succeeded; report it along with the rename failure.
			result["rename"] = map[string]string{"error": err.Error()}
			return respondJSON(result)
		}
		result["rename"] = renameResult
	}

	return respondJSON(result)
}

func (s *Server) handleRenameSheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet", "")
	sheet := argOr(args, "sheet", "")
	newName := argOr(args, "new_name", "")

	if spreadsheetID == "" || sheet == "" || newName == "" {
		return respondError("spreadsheet, sheet, and new_name are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	sheetID, found, err := s.sheetID(handle.Sheets, spreadsheetID, sheet)
	if err != nil {
		return respondError("failed to get spreadsheet: %v", err)
	}
	if !found {
		return respondError("sheet '%s' not found", sheet)
	}

	result, err := handle.Sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					Title:   newName,
				},
				Fields: "title",
			},
		}},
	}).Do()
	if err != nil {
		return respondError("failed to rename sheet: %v", err)
	}

	return respondJSON(result)
}

func (s *Server) handleDeleteSheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")

	if spreadsheetID == "" || sheet == "" {
		return respondError("spreadsheet_id and sheet are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	sheetID, found, err := s.sheetID(handle.Sheets, spreadsheetID, sheet)
	if err != nil {
		return respondError("failed to get spreadsheet: %v", err)
	}
	if !found {
		return respondError("sheet '%s' not found", sheet)
	}

	result, err := handle.Sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteSheet: &sheets.DeleteSheetRequest{SheetId: sheetID},
		}},
	}).Do()
	if err != nil {
		return respondError("failed to delete sheet: %v", err)
	}

	return respondJSON(result)
}
