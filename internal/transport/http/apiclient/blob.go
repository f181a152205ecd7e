package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"assetdesk-client/internal/domain/auth/model"
)

// Blob is a downloaded file.
type Blob struct {
	Data        []byte
	ContentType string
	// Filename comes from Content-Disposition; empty when the header has none.
	Filename string
}

// BlobFetcher downloads binary responses. It attaches the stored bearer and
// cookies but never refreshes; a 401 is returned like any other failure.
type BlobFetcher struct {
	client *Client
}

// Blobs returns a fetcher sharing this client's store, cookies and transport.
func (c *Client) Blobs() *BlobFetcher {
	return &BlobFetcher{client: c}
}

var filenamePattern = regexp.MustCompile(`filename[^;=\n]*=(?:"([^"]*)"|'([^']*)'|([^;\n]*))`)

// filenameFromDisposition extracts the filename of a Content-Disposition
// header with surrounding quotes removed.
func filenameFromDisposition(header string) string {
	m := filenamePattern.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	name := m[1] + m[2] + m[3]
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	// filename*=UTF-8''report%20q1.csv
	if i := strings.Index(name, "''"); i >= 0 {
		if decoded, err := url.PathUnescape(name[i+2:]); err == nil {
			name = decoded
		}
	}
	return name
}

// FetchBlob downloads path.
func (b *BlobFetcher) FetchBlob(ctx context.Context, path string) (Blob, error) {
	c := b.client
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return Blob{}, &Error{Kind: KindTransport, Message: fmt.Sprintf("build request: %v", err), Cause: err}
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	if token, ok := c.readStore(ctx, model.KeyAccessToken); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("[BLOB] GET %s failed: %v", path, err)
		return Blob{}, transportError(http.MethodGet, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, transportError(http.MethodGet, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(data)
		if strings.TrimSpace(msg) == "" {
			msg = genericStatusMessage(resp.StatusCode)
		}
		return Blob{}, &Error{Kind: KindAPI, Message: msg, Status: resp.StatusCode}
	}

	blob := Blob{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}
	c.logger.Debug("[BLOB] GET %s -> %d bytes (%s)", path, len(data), blob.Filename)
	return blob, nil
}

// SaveBlob downloads path into dir and returns the written file. The name
// comes from Content-Disposition, else the last segment of path.
func (b *BlobFetcher) SaveBlob(ctx context.Context, path, dir string) (string, error) {
	blob, err := b.FetchBlob(ctx, path)
	if err != nil {
		return "", err
	}

	name := blob.Filename
	if name == "" {
		name = fallbackFilename(path)
	}
	// only the base name is honoured, whatever the server sent
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = "download"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, blob.Data, 0o644); err != nil {
		return "", err
	}
	return target, nil
}

func fallbackFilename(p string) string {
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	base := path.Base(strings.TrimRight(p, "/"))
	if base == "." || base == "/" || base == "" {
		return "download"
	}
	return base
}
