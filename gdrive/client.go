package gdrive

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the Google Drive web UI endpoint.
	DefaultBaseURL = "https://" + driveHost

	// DefaultUserAgent mimics a desktop browser. Drive serves different
	// markup to clients it does not recognize.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"
)

// Client is the transport handle shared by one top-level operation. It is
// constructed explicitly and passed down instead of living in a process-wide
// session, so tests and callers can swap the endpoint and the http.Client.
//
// The zero value is usable; empty fields fall back to the defaults above.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
}

// NewClient returns a Client with default transport, endpoint and headers.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{},
		BaseURL:    DefaultBaseURL,
		UserAgent:  DefaultUserAgent,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

// FolderURL returns the listing page URL for a folder ID.
func (c *Client) FolderURL(id string) string {
	return c.baseURL() + "/drive/folders/" + url.PathEscape(id)
}

// FileViewURL returns the view page URL for a file ID. The page title
// carries the file name.
func (c *Client) FileViewURL(id string) string {
	return c.baseURL() + "/file/d/" + url.PathEscape(id) + "/view?usp=drive_link"
}

// DownloadURL returns the direct-download endpoint for a file ID.
func (c *Client) DownloadURL(id string) string {
	return c.baseURL() + "/uc?id=" + url.QueryEscape(id) + "&export=download"
}

// Get issues a GET with the client's default headers and identity transfer
// encoding. Byte-stream requests go through here: resume offsets are only
// meaningful when the body on the wire is the body on disk.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "create request for %s", rawURL)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept-Encoding", "identity")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.httpClient().Do(req)
}

// GetPage fetches an HTML or metadata page, negotiating zstd/gzip transfer
// compression and returning the decoded body. Non-2xx responses are returned
// with their status and an empty body.
func (c *Client) GetPage(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "create request for %s", rawURL)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}

	body, err := decodeBody(resp)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrapf(err, "read page %s", rawURL)
	}
	return resp.StatusCode, body, nil
}

// decodeBody reads a response body, undoing the Content-Encoding the server
// picked from our Accept-Encoding offer.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch enc := resp.Header.Get("Content-Encoding"); enc {
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "create zstd reader")
		}
		defer zr.Close()
		reader = zr
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "create gzip reader")
		}
		defer gr.Close()
		reader = gr
	case "", "identity":
		// raw body
	default:
		return nil, errors.Errorf("unsupported content encoding %q", enc)
	}

	return io.ReadAll(reader)
}
