package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/Raks-kmt/kaishou/internal/domain"
)

// maxPlaylistDepth bounds master playlist indirection.
const maxPlaylistDepth = 2

// fetchHLS assembles an HLS stream into a single transport-stream file.
// For master playlists the variant closest to the resolved metadata's
// height is chosen; without a height hint the best variant wins.
func (f *Fetcher) fetchHLS(ctx context.Context, meta *domain.VideoMetadata, destDir string) (string, int64, error) {
	mediaPl, base, err := f.loadMediaPlaylist(ctx, meta.MediaURL, meta.Height, 0)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(destDir, hlsFileName)
	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	var written int64
	var segments int
	for _, seg := range mediaPl.Segments {
		if seg == nil {
			break
		}
		segURL, err := resolveURL(base, seg.URI)
		if err != nil {
			return "", 0, fmt.Errorf("segment url: %w", err)
		}
		n, err := f.appendSegment(ctx, segURL, file, written)
		if err != nil {
			return "", 0, err
		}
		written += n
		segments++
	}

	if written == 0 {
		return "", 0, domain.ErrEmptyFile
	}

	f.logger.Info("hls download complete",
		"url", meta.MediaURL, "segments", segments, "size", written)
	return path, written, nil
}

// loadMediaPlaylist fetches playlistURL and walks master playlists down
// to a media playlist.
func (f *Fetcher) loadMediaPlaylist(ctx context.Context, playlistURL string, maxHeight, depth int) (*m3u8.MediaPlaylist, *url.URL, error) {
	if depth >= maxPlaylistDepth {
		return nil, nil, fmt.Errorf("%w: playlist nesting too deep", domain.ErrDownloadFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	f.headers.Apply(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, nil, err
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, nil, fmt.Errorf("parse playlist: %w", err)
	}
	base := resp.Request.URL

	switch listType {
	case m3u8.MEDIA:
		return playlist.(*m3u8.MediaPlaylist), base, nil
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		variant := pickVariant(master.Variants, maxHeight)
		if variant == nil {
			return nil, nil, fmt.Errorf("%w: master playlist has no variants", domain.ErrDownloadFailed)
		}
		next, err := resolveURL(base, variant.URI)
		if err != nil {
			return nil, nil, fmt.Errorf("variant url: %w", err)
		}
		return f.loadMediaPlaylist(ctx, next.String(), maxHeight, depth+1)
	default:
		return nil, nil, fmt.Errorf("%w: unsupported playlist type", domain.ErrDownloadFailed)
	}
}

// appendSegment downloads one segment to the end of file, keeping the
// running total under the size cap.
func (f *Fetcher) appendSegment(ctx context.Context, segURL *url.URL, file *os.File, written int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	f.headers.Apply(req)

	resp, err := f.streamClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return 0, err
	}

	remaining := f.maxFileSize - written
	n, err := io.Copy(file, io.LimitReader(resp.Body, remaining+1))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if n > remaining {
		return 0, fmt.Errorf("%w: exceeded %d bytes", domain.ErrFileTooLarge, f.maxFileSize)
	}
	return n, nil
}

// pickVariant chooses the stream whose height sits closest under the
// cap. Heights come from the RESOLUTION attribute; variants without one
// sort by bandwidth below those that declare it.
func pickVariant(variants []*m3u8.Variant, maxHeight int) *m3u8.Variant {
	var usable []*m3u8.Variant
	for _, v := range variants {
		if v != nil && v.URI != "" {
			usable = append(usable, v)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	sort.Slice(usable, func(i, j int) bool {
		hi, hj := variantHeight(usable[i]), variantHeight(usable[j])
		if hi != hj {
			return hi > hj
		}
		return usable[i].Bandwidth > usable[j].Bandwidth
	})

	if maxHeight <= 0 {
		return usable[0]
	}
	for _, v := range usable {
		if variantHeight(v) <= maxHeight {
			return v
		}
	}
	return usable[len(usable)-1]
}

func variantHeight(v *m3u8.Variant) int {
	res := v.Resolution
	i := strings.IndexAny(res, "xX")
	if i < 0 {
		return 0
	}
	h, err := strconv.Atoi(res[i+1:])
	if err != nil {
		return 0
	}
	return h
}

func resolveURL(base *url.URL, ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(parsed), nil
}
