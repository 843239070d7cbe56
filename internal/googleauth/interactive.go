package googleauth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/oauth2"
)

// ErrInteractiveUnavailable is returned when the interactive code exchange
// would be needed but no human is present at a terminal. Headless deployments
// hit this instead of blocking forever on stdin.
var ErrInteractiveUnavailable = errors.New("interactive authorization required but stdin is not a terminal")

// ErrAuthCancelled is returned when the user aborts the code exchange by
// submitting empty input or closing stdin.
var ErrAuthCancelled = errors.New("authentication cancelled")

// oobRedirectURI makes the authorization code display in the browser for
// manual copy-paste instead of redirecting to a local listener.
const oobRedirectURI = "urn:ietf:wg:oauth:2.0:oob"

// exchangeInteractive runs the out-of-band authorization code flow: it prints
// the authorization URL, reads the pasted code from stdin, and exchanges it
// for a token. Prompts go to stderr; stdout may be the MCP stdio transport.
func exchangeInteractive(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil, ErrInteractiveUnavailable
	}

	oob := *conf
	oob.RedirectURL = oobRedirectURI

	authURL := oob.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(os.Stderr, "Open the following URL in your browser and authorize access:\n\n%s\n\n", authURL)
	fmt.Fprint(os.Stderr, "Enter the authorization code: ")

	code, err := readAuthCode(os.Stdin)
	if err != nil {
		return nil, err
	}

	tok, err := oob.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

// readAuthCode reads exactly one line. An empty line or a closed stream
// cancels the flow; the read never blocks past the first newline.
func readAuthCode(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", ErrAuthCancelled, err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", ErrAuthCancelled
	}
	return code, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(tok)
}
