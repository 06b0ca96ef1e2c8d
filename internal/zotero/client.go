// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zotero implements a minimal client for the Zotero Web API v3:
// listing library items, enumerating child attachments, and downloading
// stored files.
package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/zotero-md/internal/httputil"
	"github.com/pdiddy/zotero-md/pkg/types"
)

// apiBase is the Zotero API root. Declared as a var so tests can
// substitute httptest servers.
var apiBase = "https://api.zotero.org"

const (
	apiVersion      = "3"
	defaultPageSize = 50
	maxRetries      = 5
)

// Item is one top-level bibliographic item in the library.
type Item struct {
	Key   string
	Title string
}

// Client talks to one Zotero library over the Web API.
type Client struct {
	http *http.Client
	cfg  types.LibraryConfig
}

// NewClient creates a client for the library identified by cfg. The
// *http.Client is injected so callers control timeouts.
func NewClient(client *http.Client, cfg types.LibraryConfig) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Client{http: client, cfg: cfg}
}

// libraryPrefix returns the URL path prefix for the configured library,
// e.g. "/users/12345" or "/groups/67890".
func (c *Client) libraryPrefix() string {
	if c.cfg.LibraryType == types.LibraryGroup {
		return "/groups/" + c.cfg.LibraryID
	}
	return "/users/" + c.cfg.LibraryID
}

// itemJSON mirrors the wire format of an item returned by the API.
type itemJSON struct {
	Key  string `json:"key"`
	Data struct {
		Key         string `json:"key"`
		ItemType    string `json:"itemType"`
		Title       string `json:"title"`
		ParentItem  string `json:"parentItem"`
		LinkMode    string `json:"linkMode"`
		ContentType string `json:"contentType"`
		Filename    string `json:"filename"`
	} `json:"data"`
}

// ListTopItems returns all top-level items in the library, following the
// start/limit pagination until the Total-Results count is exhausted.
func (c *Client) ListTopItems(ctx context.Context) ([]Item, error) {
	var items []Item
	start := 0
	for {
		q := url.Values{}
		q.Set("start", strconv.Itoa(start))
		q.Set("limit", strconv.Itoa(c.cfg.PageSize))
		q.Set("format", "json")

		var page []itemJSON
		total, err := c.getJSON(ctx, c.libraryPrefix()+"/items/top", q, &page)
		if err != nil {
			return nil, fmt.Errorf("listing items: %w", err)
		}

		for _, it := range page {
			items = append(items, Item{Key: it.Key, Title: it.Data.Title})
		}

		start += len(page)
		if len(page) == 0 || start >= total {
			return items, nil
		}
	}
}

// ChildAttachments returns the stored-file attachments of one item.
// Linked-file attachments are excluded because the API cannot serve
// their bytes.
func (c *Client) ChildAttachments(ctx context.Context, parent Item) ([]types.Attachment, error) {
	q := url.Values{}
	q.Set("itemType", "attachment")
	q.Set("format", "json")

	var children []itemJSON
	if _, err := c.getJSON(ctx, c.libraryPrefix()+"/items/"+parent.Key+"/children", q, &children); err != nil {
		return nil, fmt.Errorf("listing attachments of %s: %w", parent.Key, err)
	}

	var atts []types.Attachment
	for _, ch := range children {
		if ch.Data.ItemType != "attachment" {
			continue
		}
		if ch.Data.LinkMode != "imported_file" && ch.Data.LinkMode != "imported_url" {
			continue
		}
		atts = append(atts, types.Attachment{
			Key:         ch.Key,
			Title:       ch.Data.Title,
			ParentKey:   parent.Key,
			ParentTitle: parent.Title,
			ContentType: ch.Data.ContentType,
			Filename:    ch.Data.Filename,
		})
	}
	return atts, nil
}

// LocalPath returns the deterministic download destination for an
// attachment within destDir.
func LocalPath(att types.Attachment, destDir string) string {
	return filepath.Join(destDir, strings.ToLower(att.Key)+fileExt(att))
}

// DownloadFile fetches an attachment's stored bytes into destDir and
// returns the local path. An already-downloaded file is reused. The
// download goes to a temp file first and is renamed on success so a
// partial transfer never masquerades as a complete file.
func (c *Client) DownloadFile(ctx context.Context, att types.Attachment, destDir string) (string, error) {
	destPath := LocalPath(att, destDir)

	if _, err := os.Stat(destPath); err == nil {
		return destPath, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating files directory %s: %w", destDir, err)
	}

	req, err := c.newRequest(ctx, c.libraryPrefix()+"/items/"+att.Key+"/file", nil)
	if err != nil {
		return "", err
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, maxRetries)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", att.Key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d downloading file for %s", resp.StatusCode, att.Key)
	}

	tmpFile, err := os.CreateTemp(destDir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}

// fileExt picks a filename extension for the downloaded bytes, preferring
// the stored filename over the MIME type.
func fileExt(att types.Attachment) string {
	if ext := filepath.Ext(att.Filename); ext != "" {
		return ext
	}
	switch att.ContentType {
	case "application/pdf":
		return ".pdf"
	case "application/epub+zip":
		return ".epub"
	case "text/html":
		return ".html"
	default:
		return ".bin"
	}
}

// newRequest builds an authenticated API request.
func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	u := apiBase + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Zotero-API-Version", apiVersion)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.APIKey != "" {
		req.Header.Set("Zotero-API-Key", c.cfg.APIKey)
	}
	return req, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into v.
// It returns the Total-Results header value (0 when absent) for paging.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) (int, error) {
	req, err := c.newRequest(ctx, path, q)
	if err != nil {
		return 0, err
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API returned HTTP %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return 0, fmt.Errorf("parsing API response: %w", err)
	}

	total, _ := strconv.Atoi(resp.Header.Get("Total-Results"))
	return total, nil
}
