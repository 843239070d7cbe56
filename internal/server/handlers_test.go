package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/sheetkit/gsheets-mcp/internal/config"
	"github.com/sheetkit/gsheets-mcp/internal/googleauth"
)

// fakeGoogle is an httptest-backed stand-in for the Sheets and Drive APIs.
// It records every request path so tests can assert which backend calls a
// handler issued.
type fakeGoogle struct {
	mu    sync.Mutex
	paths []string
	serve http.HandlerFunc
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
	f.serve(w, r)
}

func (f *fakeGoogle) calls(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.paths {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

// newTestServer builds a Server in the delegated-auth variant pointed at the
// fake backend; the static per-request bearer token keeps credential
// resolution entirely offline.
func newTestServer(t *testing.T, fake *fakeGoogle, folderID string) *Server {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		Transport:         config.TransportHTTP,
		Host:              "127.0.0.1",
		Port:              8000,
		OAuthClientID:     "client-id",
		OAuthClientSecret: "client-secret",
		OAuthBaseURL:      "http://127.0.0.1:8000",
		DriveFolderID:     folderID,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, option.WithEndpoint(ts.URL))
}

func callCtx() context.Context {
	return googleauth.WithBearerToken(context.Background(), "test-token")
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "tool results are text content")
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestGetSheetDataBuildsRange(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/spreadsheets/ss1/values/Sheet1!A1:C10":
			writeJSON(w, map[string]any{
				"range":  "Sheet1!A1:C10",
				"values": [][]any{{"a", "b"}, {"1", "2"}},
			})
		case "/v4/spreadsheets/ss1/values/Sheet1":
			writeJSON(w, map[string]any{
				"range":  "Sheet1!A1:Z100",
				"values": [][]any{{"a"}},
			})
		default:
			writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
		}
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleGetSheetData(callCtx(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
		"sheet":          "Sheet1",
		"range":          "A1:C10",
	}))
	require.NoError(t, err)
	body := decodeResult[map[string]any](t, res)
	assert.Equal(t, "ss1", body["spreadsheetId"])
	valueRanges := body["valueRanges"].([]any)
	require.Len(t, valueRanges, 1)
	assert.Equal(t, "Sheet1!A1:C10", valueRanges[0].(map[string]any)["range"])

	// No sub-range: the bare sheet name is the whole range.
	res, err = s.handleGetSheetData(callCtx(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
		"sheet":          "Sheet1",
	}))
	require.NoError(t, err)
	body = decodeResult[map[string]any](t, res)
	valueRanges = body["valueRanges"].([]any)
	assert.Equal(t, "Sheet1", valueRanges[0].(map[string]any)["range"])
	assert.Equal(t, 1, fake.calls("/values/Sheet1!A1:C10"))
}

func TestGetSheetDataIdempotentReads(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"range": "Data!A1:B2", "values": [][]any{{"x", "y"}}})
	}
	s := newTestServer(t, fake, "")

	args := map[string]any{"spreadsheet_id": "ss1", "sheet": "Data", "range": "A1:B2"}
	first, err := s.handleGetSheetData(callCtx(), toolRequest(args))
	require.NoError(t, err)
	second, err := s.handleGetSheetData(callCtx(), toolRequest(args))
	require.NoError(t, err)

	assert.Equal(t, resultText(t, first), resultText(t, second))
}

func TestUpdateCells(t *testing.T) {
	fake := &fakeGoogle{}
	var gotInputOption string
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/v4/spreadsheets/ss1/values/Sheet1!A1:B2", r.URL.Path)
		gotInputOption = r.URL.Query().Get("valueInputOption")
		writeJSON(w, map[string]any{"updatedCells": 4})
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleUpdateCells(callCtx(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
		"sheet":          "Sheet1",
		"range":          "A1:B2",
		"data":           []any{[]any{"a", "b"}, []any{float64(1), float64(2)}},
	}))
	require.NoError(t, err)
	body := decodeResult[map[string]any](t, res)
	assert.Equal(t, float64(4), body["updatedCells"])
	assert.Equal(t, "USER_ENTERED", gotInputOption)
}

func TestGetMultipleSheetDataPartialFailure(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/spreadsheets/ss-missing/") {
			writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
			return
		}
		writeJSON(w, map[string]any{"values": [][]any{{"x", "y"}}})
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleGetMultipleSheetData(callCtx(), toolRequest(map[string]any{
		"queries": []any{
			map[string]any{"spreadsheet_id": "ss-1", "sheet": "Sheet1", "range": "A1:B2"},
			map[string]any{"spreadsheet_id": "ss-missing", "sheet": "Sheet1", "range": "A1:B2"},
			map[string]any{"spreadsheet_id": "ss-2", "sheet": "Data", "range": "C1:C3"},
		},
	}))
	require.NoError(t, err, "one failing query must not fail the batch")

	results := decodeResult[[]map[string]any](t, res)
	require.Len(t, results, 3)

	assert.Contains(t, results[0], "data")
	assert.NotContains(t, results[0], "error")

	assert.Contains(t, results[1], "error")
	assert.NotContains(t, results[1], "data")
	assert.Equal(t, "ss-missing", results[1]["spreadsheet_id"])

	assert.Contains(t, results[2], "data")
	assert.NotContains(t, results[2], "error")
}

func TestGetMultipleSheetDataMissingKeys(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"values": [][]any{}})
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleGetMultipleSheetData(callCtx(), toolRequest(map[string]any{
		"queries": []any{
			map[string]any{"spreadsheet_id": "ss-1", "sheet": "", "range": "A1:B2"},
		},
	}))
	require.NoError(t, err)

	results := decodeResult[[]map[string]any](t, res)
	require.Len(t, results, 1)
	assert.Equal(t, "Missing required keys (spreadsheet_id, sheet, range)", results[0]["error"])
	assert.Zero(t, fake.calls("/values/"), "invalid queries must not reach the backend")
}

func TestShareSpreadsheetPartialFailure(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/files/ss1/permissions", r.URL.Path)
		writeJSON(w, map[string]any{"id": "perm-1"})
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleShareSpreadsheet(callCtx(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
		"recipients": []any{
			map[string]any{"email_address": "a@x.com", "role": "writer"},
			map[string]any{"email_address": "", "role": "reader"},
			map[string]any{"email_address": "b@x.com", "role": "bogus"},
		},
	}))
	require.NoError(t, err)

	body := decodeResult[map[string][]map[string]any](t, res)
	require.Len(t, body["successes"], 1)
	require.Len(t, body["failures"], 2)

	assert.Equal(t, "a@x.com", body["successes"][0]["email_address"])
	assert.Equal(t, "perm-1", body["successes"][0]["permissionId"])

	assert.Nil(t, body["failures"][0]["email_address"])
	assert.Contains(t, body["failures"][0]["error"], "Missing email_address")

	assert.Equal(t, "b@x.com", body["failures"][1]["email_address"])
	assert.Contains(t, body["failures"][1]["error"], "Invalid role 'bogus'")

	assert.Equal(t, 1, fake.calls("/permissions"), "only the valid recipient reaches the backend")
}

func copySheetFake() *fakeGoogle {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v4/spreadsheets/src":
			writeJSON(w, map[string]any{
				"spreadsheetId": "src",
				"sheets": []any{
					map[string]any{"properties": map[string]any{"title": "Sheet1", "sheetId": 0}},
					map[string]any{"properties": map[string]any{"title": "Data", "sheetId": 7}},
				},
			})
		case r.URL.Path == "/v4/spreadsheets/src/sheets/7:copyTo":
			writeJSON(w, map[string]any{"sheetId": 99, "title": "Copy of Data", "index": 2})
		case r.URL.Path == "/v4/spreadsheets/dst:batchUpdate":
			writeJSON(w, map[string]any{"spreadsheetId": "dst"})
		default:
			writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
		}
	}
	return fake
}

func TestCopySheetRenamesWhenTitlesDiffer(t *testing.T) {
	fake := copySheetFake()
	s := newTestServer(t, fake, "")

	res, err := s.handleCopySheet(callCtx(), toolRequest(map[string]any{
		"src_spreadsheet": "src",
		"src_sheet":       "Data",
		"dst_spreadsheet": "dst",
		"dst_sheet":       "Report",
	}))
	require.NoError(t, err)

	body := decodeResult[map[string]any](t, res)
	assert.Contains(t, body, "copy")
	assert.Contains(t, body, "rename")
	assert.Equal(t, 1, fake.calls("dst:batchUpdate"))
}

func TestCopySheetSkipsRenameWhenTitleMatches(t *testing.T) {
	fake := copySheetFake()
	s := newTestServer(t, fake, "")

	res, err := s.handleCopySheet(callCtx(), toolRequest(map[string]any{
		"src_spreadsheet": "src",
		"src_sheet":       "Data",
		"dst_spreadsheet": "dst",
		"dst_sheet":       "Copy of Data",
	}))
	require.NoError(t, err)

	body := decodeResult[map[string]any](t, res)
	assert.Contains(t, body, "copy")
	assert.NotContains(t, body, "rename")
	assert.Zero(t, fake.calls("dst:batchUpdate"))
}

func TestCopySheetSourceNotFound(t *testing.T) {
	fake := copySheetFake()
	s := newTestServer(t, fake, "")

	res, err := s.handleCopySheet(callCtx(), toolRequest(map[string]any{
		"src_spreadsheet": "src",
		"src_sheet":       "Missing",
		"dst_spreadsheet": "dst",
		"dst_sheet":       "Report",
	}))
	require.NoError(t, err, "a missing sheet is a structured error value, not a call failure")

	body := decodeResult[map[string]any](t, res)
	assert.Contains(t, body["error"], "not found")
	assert.Zero(t, fake.calls(":copyTo"))
}

func TestAddRows(t *testing.T) {
	fake := &fakeGoogle{}
	var batchBody map[string]any
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/spreadsheets/ss1":
			writeJSON(w, map[string]any{
				"sheets": []any{
					map[string]any{"properties": map[string]any{"title": "Data", "sheetId": 7}},
				},
			})
		case "/v4/spreadsheets/ss1:batchUpdate":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&batchBody))
			writeJSON(w, map[string]any{"spreadsheetId": "ss1"})
		default:
			writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
		}
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleAddRows(callCtx(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
		"sheet":          "Data",
		"count":          float64(3),
		"start_row":      float64(2),
	}))
	require.NoError(t, err)
	assert.NotContains(t, decodeResult[map[string]any](t, res), "error")

	requests := batchBody["requests"].([]any)
	require.Len(t, requests, 1)
	insert := requests[0].(map[string]any)["insertDimension"].(map[string]any)
	dimRange := insert["range"].(map[string]any)
	assert.Equal(t, float64(7), dimRange["sheetId"])
	assert.Equal(t, "ROWS", dimRange["dimension"])
	assert.Equal(t, float64(2), dimRange["startIndex"])
	assert.Equal(t, float64(5), dimRange["endIndex"])
	assert.Equal(t, true, insert["inheritFromBefore"])
}

func TestAddRowsSheetNotFound(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"sheets": []any{
				map[string]any{"properties": map[string]any{"title": "Sheet1", "sheetId": 0}},
			},
		})
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleAddRows(callCtx(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
		"sheet":          "Missing",
		"count":          float64(2),
	}))
	require.NoError(t, err)

	body := decodeResult[map[string]any](t, res)
	assert.Contains(t, body["error"], "sheet 'Missing' not found")
	assert.Zero(t, fake.calls(":batchUpdate"))
}

func TestGetMultipleSpreadsheetSummary(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/spreadsheets/ss-ok":
			writeJSON(w, map[string]any{
				"properties": map[string]any{"title": "Budget"},
				"sheets": []any{
					map[string]any{"properties": map[string]any{"title": "Data", "sheetId": 7}},
				},
			})
		case "/v4/spreadsheets/ss-ok/values/Data!A1:5":
			writeJSON(w, map[string]any{
				"values": [][]any{{"h1", "h2"}, {"r1", "r2"}},
			})
		case "/v4/spreadsheets/ss-untitled":
			writeJSON(w, map[string]any{
				"sheets": []any{
					map[string]any{"properties": map[string]any{"title": "Data", "sheetId": 1}},
				},
			})
		case "/v4/spreadsheets/ss-untitled/values/Data!A1:5":
			writeJSON(w, map[string]any{
				"values": [][]any{{"h1"}},
			})
		default:
			writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
		}
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleGetMultipleSpreadsheetSummary(callCtx(), toolRequest(map[string]any{
		"spreadsheet_ids": []any{"ss-ok", "ss-untitled", "ss-bad"},
	}))
	require.NoError(t, err, "per-spreadsheet failures are captured, not thrown")

	summaries := decodeResult[[]map[string]any](t, res)
	require.Len(t, summaries, 3)

	assert.Equal(t, "Budget", summaries[0]["title"])
	assert.Nil(t, summaries[0]["error"])
	sheetsSummary := summaries[0]["sheets"].([]any)
	require.Len(t, sheetsSummary, 1)
	dataSheet := sheetsSummary[0].(map[string]any)
	assert.Equal(t, []any{"h1", "h2"}, dataSheet["headers"])
	assert.Equal(t, []any{[]any{"r1", "r2"}}, dataSheet["first_rows"])

	// Metadata without spreadsheet properties gets the placeholder title.
	assert.Equal(t, "Unknown Title", summaries[1]["title"])
	assert.Nil(t, summaries[1]["error"])

	assert.Equal(t, "ss-bad", summaries[2]["spreadsheet_id"])
	assert.Equal(t, "Unknown Title", summaries[2]["title"])
	assert.NotNil(t, summaries[2]["error"])
}

func TestListSpreadsheetsScopedToFolder(t *testing.T) {
	fake := &fakeGoogle{}
	var gotQuery string
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		writeJSON(w, map[string]any{
			"files": []any{
				map[string]any{"id": "a", "name": "A"},
				map[string]any{"id": "b", "name": "B"},
			},
		})
	}
	s := newTestServer(t, fake, "folder-9")

	res, err := s.handleListSpreadsheets(callCtx(), toolRequest(nil))
	require.NoError(t, err)

	list := decodeResult[[]map[string]string](t, res)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0]["title"])
	assert.Contains(t, gotQuery, "mimeType='application/vnd.google-apps.spreadsheet'")
	assert.Contains(t, gotQuery, "'folder-9' in parents")
}

func TestCreateSpreadsheetInWorkingFolder(t *testing.T) {
	fake := &fakeGoogle{}
	var created map[string]any
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/files", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeJSON(w, map[string]any{
			"id":      "new-1",
			"name":    created["name"],
			"parents": created["parents"],
		})
	}
	s := newTestServer(t, fake, "folder-9")

	res, err := s.handleCreateSpreadsheet(callCtx(), toolRequest(map[string]any{
		"title": "Quarterly",
	}))
	require.NoError(t, err)

	body := decodeResult[map[string]any](t, res)
	assert.Equal(t, "new-1", body["spreadsheetId"])
	assert.Equal(t, "Quarterly", body["title"])
	assert.Equal(t, "folder-9", body["folder"])
	assert.Equal(t, []any{"folder-9"}, created["parents"])
	assert.Equal(t, spreadsheetMimeType, created["mimeType"])
}

func TestGetAuthUserInfo(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/v2/userinfo", r.URL.Path)
		writeJSON(w, map[string]any{
			"id":             "123",
			"email":          "u@x.com",
			"name":           "U",
			"verified_email": true,
		})
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleGetAuthUserInfo(callCtx(), toolRequest(nil))
	require.NoError(t, err)

	body := decodeResult[map[string]any](t, res)
	assert.Equal(t, "u@x.com", body["email"])
	assert.Equal(t, true, body["verified_email"])
}

func TestGetAuthUserInfoWithoutToken(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call expected without a bearer token")
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleGetAuthUserInfo(context.Background(), toolRequest(nil))
	require.NoError(t, err)

	body := decodeResult[map[string]any](t, res)
	assert.Contains(t, body["error"], "no authenticated user")
}

func TestDelegatedAuthMissingBearerFailsToolCall(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call expected without a bearer token")
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleListSheets(context.Background(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
	}))
	require.NoError(t, err)

	body := decodeResult[map[string]any](t, res)
	assert.Contains(t, body["error"], "authentication failed")
}

func TestSpreadsheetInfoToolAndResource(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/ss1", r.URL.Path)
		writeJSON(w, map[string]any{
			"properties": map[string]any{"title": "Budget"},
			"sheets": []any{
				map[string]any{"properties": map[string]any{
					"title": "Data", "sheetId": 7,
					"gridProperties": map[string]any{"rowCount": 100, "columnCount": 26},
				}},
			},
		})
	}
	s := newTestServer(t, fake, "")

	res, err := s.handleGetSpreadsheetInfoTool(callCtx(), toolRequest(map[string]any{
		"spreadsheet_id": "ss1",
	}))
	require.NoError(t, err)
	info := decodeResult[spreadsheetInfo](t, res)
	assert.Equal(t, "Budget", info.Title)
	require.Len(t, info.Sheets, 1)
	assert.Equal(t, int64(7), info.Sheets[0].SheetID)
	require.NotNil(t, info.Sheets[0].GridProperties)
	assert.Equal(t, int64(100), info.Sheets[0].GridProperties.RowCount)

	readReq := mcp.ReadResourceRequest{}
	readReq.Params.URI = "spreadsheet://ss1/info"
	contents, err := s.handleSpreadsheetInfoResource(callCtx(), readReq)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Contains(t, text.Text, `"title": "Budget"`)
}

func TestSpreadsheetInfoResourceBadURI(t *testing.T) {
	fake := &fakeGoogle{}
	fake.serve = func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call expected for a malformed URI")
	}
	s := newTestServer(t, fake, "")

	readReq := mcp.ReadResourceRequest{}
	readReq.Params.URI = "not-a-resource-uri"
	_, err := s.handleSpreadsheetInfoResource(callCtx(), readReq)
	require.Error(t, err)
}
