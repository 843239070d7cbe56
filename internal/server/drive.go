package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/sheetkit/gsheets-mcp/internal/googleauth"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

func (s *Server) handleListSpreadsheets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	query := fmt.Sprintf("mimeType='%s'", spreadsheetMimeType)
	if handle.FolderID != "" {
		query = fmt.Sprintf("%s and '%s' in parents", query, handle.FolderID)
		s.logger.Debug("listing spreadsheets in folder", "folder", handle.FolderID)
	} else {
		s.logger.Debug("listing spreadsheets in 'My Drive'")
	}

	results, err := handle.Drive.Files.List().
		Q(query).
		Spaces("drive").
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true).
		Fields("files(id, name)").
		OrderBy("modifiedTime desc").
		Do()
	if err != nil {
		return respondError("failed to list spreadsheets: %v", err)
	}

	spreadsheets := make([]map[string]string, 0, len(results.Files))
	for _, file := range results.Files {
		spreadsheets = append(spreadsheets, map[string]string{
			"id":    file.Id,
			"title": file.Name,
		})
	}

	return respondJSON(spreadsheets)
}

func (s *Server) handleCreateSpreadsheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	title := argOr(args, "title", "")
	if title == "" {
		return respondError("title is required")
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	driveFile := &drive.File{
		Name:     title,
		MimeType: spreadsheetMimeType,
	}
	if handle.FolderID != "" {
		driveFile.Parents = []string{handle.FolderID}
	}

	file, err := handle.Drive.Files.Create(driveFile).
		SupportsAllDrives(true).
		Fields("id, name, parents").
		Do()
	if err != nil {
		return respondError("failed to create spreadsheet: %v", err)
	}

	s.logger.Info("spreadsheet created", "id", file.Id, "title", file.Name)

	folder := "root"
	if len(file.Parents) > 0 {
		folder = file.Parents[0]
	}

	return respondJSON(map[string]any{
		"spreadsheetId": file.Id,
		"title":         file.Name,
		"folder":        folder,
	})
}

// shareRecipient is one (email, role) pair of a share_spreadsheet call.
type shareRecipient struct {
	EmailAddress string `json:"email_address"`
	Role         string `json:"role"`
}

// validateRecipient checks one recipient entry before any backend call is
// made for it. An empty role defaults to writer.
func validateRecipient(r shareRecipient) (role string, err error) {
	if r.EmailAddress == "" {
		return "", fmt.Errorf("Missing email_address in recipient entry.")
	}
	role = r.Role
	if role == "" {
		role = "writer"
	}
	switch role {
	case "reader", "commenter", "writer":
		return role, nil
	default:
		return "", fmt.Errorf("Invalid role '%s'. Must be 'reader', 'commenter', or 'writer'.", role)
	}
}

// handleShareSpreadsheet grants a permission per recipient, collecting
// successes and failures separately. One bad recipient never aborts the rest;
// the call as a whole always succeeds.
func (s *Server) handleShareSpreadsheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := getArgs(request)
	if err != nil {
		return respondError("%v", err)
	}
	spreadsheetID := argOr(args, "spreadsheet_id", "")
	sendNotification := argOr(args, "send_notification", true)

	if spreadsheetID == "" {
		return respondError("spreadsheet_id is required")
	}

	recipientsRaw, ok := args["recipients"]
	if !ok {
		return respondError("recipients is required")
	}
	recipients, err := decodeArg[[]shareRecipient](recipientsRaw)
	if err != nil {
		return respondError("invalid recipients format: %v", err)
	}

	handle, err := s.services(ctx)
	if err != nil {
		return respondError("authentication failed: %v", err)
	}

	successes := []map[string]any{}
	failures := []map[string]any{}

	for _, r := range recipients {
		role, err := validateRecipient(r)
		if err != nil {
			entry := map[string]any{"email_address": any(nil), "error": err.Error()}
			if r.EmailAddress != "" {
				entry["email_address"] = r.EmailAddress
			}
			failures = append(failures, entry)
			continue
		}

		result, err := handle.Drive.Permissions.Create(spreadsheetID, &drive.Permission{
			Type:         "user",
			Role:         role,
			EmailAddress: r.EmailAddress,
		}).SendNotificationEmail(sendNotification).Fields("id").Do()
		if err != nil {
			failures = append(failures, map[string]any{
				"email_address": r.EmailAddress,
				"error":         fmt.Sprintf("Failed to share: %v", err),
			})
			continue
		}

		successes = append(successes, map[string]any{
			"email_address": r.EmailAddress,
			"role":          role,
			"permissionId":  result.Id,
		})
	}

	return respondJSON(map[string]any{
		"successes": successes,
		"failures":  failures,
	})
}

// handleGetAuthUserInfo is registered only in the provider-delegated variant.
// It queries the userinfo endpoint with the bearer token of this request, not
// with the shared backend handle.
func (s *Server) handleGetAuthUserInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, ok := googleauth.BearerFromContext(ctx)
	if !ok {
		return respondError("no authenticated user in request context")
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})),
	}, s.provider.ExtraOptions()...)

	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return respondError("failed to create userinfo service: %v", err)
	}

	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return respondError("failed to get user info: %v", err)
	}

	return respondJSON(map[string]any{
		"id":             info.Id,
		"email":          info.Email,
		"name":           info.Name,
		"picture":        info.Picture,
		"verified_email": info.VerifiedEmail,
	})
}
