package source

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"
)

var extByMediaType = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var knownExt = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".gif":  ".gif",
	".webp": ".webp",
}

// FetchPages downloads every page of album and hands each to sink. Downloads
// run concurrently, bounded by the configured page workers; the first failure
// cancels the remaining downloads and is returned.
func (c *Client) FetchPages(ctx context.Context, album Album, sink PageSink) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.PageWorkers)
	for _, ref := range album.Pages {
		g.Go(func() error {
			body, header, err := c.getWithRetry(gctx, ref.URL, maxPageBytes)
			if err != nil {
				return fmt.Errorf("page %d: %w", ref.Ordinal, err)
			}
			page := Page{
				Ordinal: ref.Ordinal,
				Ext:     pageExt(header, ref.URL, body),
				Data:    body,
			}
			if err := sink(page); err != nil {
				return fmt.Errorf("page %d: store: %w", ref.Ordinal, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// pageExt picks a file extension from the Content-Type header, then the URL
// path, then the sniffed body.
func pageExt(header http.Header, locator string, body []byte) string {
	if mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type")); err == nil {
		if ext, ok := extByMediaType[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}
	if u, err := url.Parse(locator); err == nil {
		if ext, ok := knownExt[strings.ToLower(path.Ext(u.Path))]; ok {
			return ext
		}
	}
	if ext, ok := extByMediaType[http.DetectContentType(body)]; ok {
		return ext
	}
	return ".jpg"
}
