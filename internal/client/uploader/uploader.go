// Package uploader drives the resumable upload protocol from the client
// side: preflight, one partial-upload per part, then finish-upload. A failed
// upload is aborted so the gateway can release the storage session.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/driveingest/internal/filex"
	"github.com/dmitrijs2005/driveingest/internal/netx"
	"golang.org/x/term"
)

const basePath = "/api/drive/files/multipart"

// ErrRejected is returned when preflight refuses the upload.
var ErrRejected = errors.New("upload rejected by preflight")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// Options describe the file being uploaded.
type Options struct {
	Name        string
	FolderID    string
	Comment     string
	IsSensitive bool
	Force       bool
}

// File is the subset of the packed file the client reports back.
type File struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	MD5         string  `json:"md5"`
	Size        int64   `json:"size"`
	IsSensitive bool    `json:"isSensitive"`
	URL         string  `json:"url"`
	Thumbnail   *string `json:"thumbnailUrl"`
}

type preflightRequest struct {
	I             string  `json:"i"`
	ContentLength int64   `json:"content_length"`
	FolderID      *string `json:"folderId,omitempty"`
	Name          *string `json:"name,omitempty"`
	IsSensitive   bool    `json:"isSensitive"`
	Comment       *string `json:"comment,omitempty"`
	Force         bool    `json:"force"`
}

type preflightResponse struct {
	AllowUpload  bool   `json:"allow_upload"`
	MinSplitSize int64  `json:"min_split_size"`
	MaxSplitSize int64  `json:"max_split_size"`
	SessionID    string `json:"session_id"`
}

type partResponse struct {
	PartNumber    int32 `json:"part_number"`
	BytesReceived int64 `json:"bytes_received"`
}

// Client talks to one gateway.
type Client struct {
	baseURL    string
	credential string
	http       *http.Client
	progress   io.Writer
}

// New returns a Client for the gateway at baseURL. progress receives a line
// per part; nil disables progress output.
func New(baseURL, credential string, httpClient *http.Client, progress io.Writer) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		http:       httpClient,
		progress:   progress,
	}
}

// ProgressWriter returns stdout when it is a terminal and nil otherwise.
func ProgressWriter() io.Writer {
	if isTerminal(int(os.Stdout.Fd())) {
		return os.Stdout
	}
	return nil
}

// PromptCredential reads the credential from the terminal without echo.
func PromptCredential(w io.Writer) (string, error) {
	if !isTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no credential given and stdin is not a terminal")
	}
	if _, err := fmt.Fprint(w, "Enter credential: "); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Upload sends the file at path through a multipart session.
func (c *Client) Upload(ctx context.Context, path string, opts Options) (*File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := opts.Name
	if name == "" {
		name = st.Name()
	}

	req := preflightRequest{
		I:             c.credential,
		ContentLength: st.Size(),
		Name:          &name,
		IsSensitive:   opts.IsSensitive,
		Force:         opts.Force,
	}
	if opts.FolderID != "" {
		req.FolderID = &opts.FolderID
	}
	if opts.Comment != "" {
		req.Comment = &opts.Comment
	}

	var pf preflightResponse
	if err := netx.PostJSON(ctx, c.http, c.baseURL+basePath+"/preflight", req, &pf); err != nil {
		return nil, fmt.Errorf("preflight: %w", err)
	}
	if !pf.AllowUpload {
		return nil, ErrRejected
	}
	if pf.MaxSplitSize <= 0 {
		return nil, fmt.Errorf("preflight: invalid max split size %d", pf.MaxSplitSize)
	}

	file, err := c.send(ctx, path, st.Size(), pf)
	if err != nil {
		// The caller's context may be the reason we failed.
		if aerr := c.abort(context.WithoutCancel(ctx), pf.SessionID); aerr != nil {
			return nil, errors.Join(err, fmt.Errorf("abort: %w", aerr))
		}
		return nil, err
	}
	return file, nil
}

func (c *Client) send(ctx context.Context, path string, total int64, pf preflightResponse) (*File, error) {
	err := filex.EachPart(path, pf.MaxSplitSize, func(part []byte) error {
		var res partResponse
		if err := netx.PostBearer(ctx, c.http, c.baseURL+basePath+"/partial-upload", pf.SessionID, part, &res); err != nil {
			return fmt.Errorf("partial upload: %w", err)
		}
		if c.progress != nil {
			fmt.Fprintf(c.progress, "part %d: %d/%d bytes\n", res.PartNumber, res.BytesReceived, total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var file File
	if err := netx.PostBearer(ctx, c.http, c.baseURL+basePath+"/finish-upload", pf.SessionID, nil, &file); err != nil {
		return nil, fmt.Errorf("finish upload: %w", err)
	}
	return &file, nil
}

func (c *Client) abort(ctx context.Context, session string) error {
	return netx.PostBearer(ctx, c.http, c.baseURL+basePath+"/abort", session, nil, nil)
}
