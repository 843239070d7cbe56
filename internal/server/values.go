package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/api/sheets/v4"
)

func (s *Server) handleGetSheetData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")
	subrange := argOr(args, "range", "")
	includeGridData := argOr(args, "include_grid_data", false)

	if spreadsheetID == "" || sheet == "" {
		return respondError("spreadsheet_id and sheet are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	fullRange := rangeRef(sheet, subrange)

	if includeGridData {
		result, err := handle.Sheets.Spreadsheets.Get(spreadsheetID).
			Ranges(fullRange).
			IncludeGridData(true).
			Do()
		if err != nil {
			return respondError("failed to get sheet data: %v", err)
		}
		return respondJSON(result)
	}

	valuesResult, err := handle.Sheets.Spreadsheets.Values.Get(spreadsheetID, fullRange).Do()
	if err != nil {
		return respondError("failed to get sheet values: %v", err)
	}

	return respondJSON(map[string]any{
		"spreadsheetId": spreadsheetID,
		"valueRanges": []map[string]any{
			{
				"range":  fullRange,
				"values": valuesResult.Values,
			},
		},
	})
}

func (s *Server) handleGetSheetFormulas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")
	subrange := argOr(args, "range", "")

	if spreadsheetID == "" || sheet == "" {
		return respondError("spreadsheet_id and sheet are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	result, err := handle.Sheets.Spreadsheets.Values.Get(spreadsheetID, rangeRef(sheet, subrange)).
		ValueRenderOption("FORMULA").
		Do()
	if err != nil {
		return respondError("failed to get formulas: %v", err)
	}

	return respondJSON(result.Values)
}

func (s *Server) handleUpdateCells(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")
	subrange := argOr(args, "range", "")

	if spreadsheetID == "" || sheet == "" || subrange == "" {
		return respondError("spreadsheet_id, sheet, and range are required")
	}

	dataRaw, ok := args["data"]
	if !ok {
		return respondError("data is required")
	}
	data, err := decodeArg[[][]any](dataRaw)
	if err != nil {
		return respondError("invalid data format: %v", err)
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	result, err := handle.Sheets.Spreadsheets.Values.Update(spreadsheetID, rangeRef(sheet, subrange), &sheets.ValueRange{
		Values: data,
	}).ValueInputOption("USER_ENTERED").Do()
	if err != nil {
		return respondError("failed to update cells: %v", err)
	}

	return respondJSON(result)
}

func (s *Server) handleBatchUpdateCells(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")

	if spreadsheetID == "" || sheet == "" {
		return respondError("spreadsheet_id and sheet are required")
	}

	rangesRaw, ok := args["ranges"]
	if !ok {
		return respondError("ranges is required")
	}
	rangesMap, ok := rangesRaw.(map[string]any)
	if !ok {
		return respondError("ranges must be an object mapping range strings to 2D arrays")
	}

	var valueRanges []*sheets.ValueRange
	for subrange, valuesRaw := range rangesMap {
		values, err := decodeArg[[][]any](valuesRaw)
		if err != nil {
			return respondError("invalid data format for range %s: %v", subrange, err)
		}
		valueRanges = append(valueRanges, &sheets.ValueRange{
			Range:  rangeRef(sheet, subrange),
			Values: values,
		})
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	result, err := handle.Sheets.Spreadsheets.Values.BatchUpdate(spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             valueRanges,
	}).Do()
	if err != nil {
		return respondError("failed to batch update cells: %v", err)
	}

	return respondJSON(result)
}

func (s *Server) handleAppendValues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")

	if spreadsheetID == "" || sheet == "" {
		return respondError("spreadsheet_id and sheet are required")
	}

	dataRaw, ok := args["data"]
	if !ok {
		return respondError("data is required")
	}
	data, err := decodeArg[[][]any](dataRaw)
	if err != nil {
		return respondError("invalid data format: %v", err)
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	result, err := handle.Sheets.Spreadsheets.Values.Append(spreadsheetID, sheet, &sheets.ValueRange{
		Values: data,
	}).ValueInputOption("USER_ENTERED").Do()
	if err != nil {
		return respondError("failed to append values: %v", err)
	}

	return respondJSON(result)
}

func (s *Server) handleClearValues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sheet := argOr(args, "sheet", "")
	subrange := argOr(args, "range", "")

	if spreadsheetID == "" || sheet == "" || subrange == "" {
		return respondError("spreadsheet_id, sheet, and range are required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	result, err := handle.Sheets.Spreadsheets.Values.Clear(spreadsheetID, rangeRef(sheet, subrange), &sheets.ClearValuesRequest{}).Do()
	if err != nil {
		return respondError("failed to clear values: %v", err)
	}

	return respondJSON(result)
}
