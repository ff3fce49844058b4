package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"go.uber.org/zap"

	"smartcheck/internal/adapters/util"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
)

var _ ports.ScanSource = (*FeedSource)(nil)

// FeedSource reads the Atom feed published by a network scan station. Each
// entry carries one scanned PDF as an enclosure link.
type FeedSource struct {
	feedURL  string
	username string
	password string
	client   *http.Client
	maxSize  int64
	logger   *zap.Logger
}

func NewFeedSource(feedURL, username, password string, maxSize int64, logger *zap.Logger) *FeedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Stations serve the feed at /feed.xml when only a host is configured
	if feedURL != "" {
		if u, err := url.Parse(feedURL); err == nil && u.Scheme != "" {
			if u.Path == "" || u.Path == "/" {
				u.Path = "/feed.xml"
				feedURL = u.String()
			}
		}
	}

	return &FeedSource{
		feedURL:  feedURL,
		username: username,
		password: password,
		client: &http.Client{
			Transport: &util.LoggingTransport{Logger: logger},
			Timeout:   5 * time.Minute,
		},
		maxSize: maxSize,
		logger:  logger,
	}
}

const (
	relNext       = "next"
	relEnclosure  = "enclosure"
	relAlternate  = "alternate"
	relSubsection = "subsection"
	typePDF       = "application/pdf"

	maxDepth = 2
	maxPages = 50 // bounds a misbehaving station feed
)

// FetchNew walks the feed, its next pages and station subsections, returning
// PDF entries updated after since.
func (s *FeedSource) FetchNew(ctx context.Context, since time.Time) ([]models.ScanFile, error) {
	if s.feedURL == "" {
		return nil, fmt.Errorf("scan feed URL is not configured")
	}
	s.logger.Debug("fetching scan feed", zap.String("url", s.feedURL), zap.Time("since", since))

	type page struct {
		url   string
		depth int
	}
	var (
		all     []models.ScanFile
		seen    = make(map[string]bool)
		visited = make(map[string]bool)
		queue   = []page{{s.feedURL, 0}}
		fetched = 0
	)

	for len(queue) > 0 && fetched < maxPages {
		current := queue[0]
		queue = queue[1:]
		if visited[current.url] {
			continue
		}
		visited[current.url] = true
		fetched++

		files, next, subsections, err := s.fetchPage(ctx, current.url, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// one broken station must not hide the others
			s.logger.Warn("skipping scan feed page", zap.String("url", current.url), zap.Error(err))
			continue
		}
		for _, f := range files {
			if !seen[f.ID] {
				seen[f.ID] = true
				all = append(all, f)
			}
		}

		if next != "" && !visited[next] {
			queue = append(queue, page{next, current.depth})
		}
		if current.depth < maxDepth {
			for _, sub := range subsections {
				if !visited[sub] {
					queue = append(queue, page{sub, current.depth + 1})
				}
			}
		}
	}

	return all, nil
}

func (s *FeedSource) fetchPage(ctx context.Context, target string, since time.Time) ([]models.ScanFile, string, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", nil, err
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to fetch scan feed from %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", nil, fmt.Errorf("scan feed returned status: %d", resp.StatusCode)
	}

	feed, err := (&atom.Parser{}).Parse(resp.Body)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to parse scan feed as Atom: %w", err)
	}

	base, _ := url.Parse(target)
	resolve := func(href string) string {
		ref, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	}

	var (
		files       []models.ScanFile
		subsections []string
		next        string
	)
	for _, link := range feed.Links {
		switch link.Rel {
		case relNext:
			if next == "" {
				next = resolve(link.Href)
			}
		case relSubsection:
			if u := resolve(link.Href); u != "" {
				subsections = append(subsections, u)
			}
		}
	}

	for _, entry := range feed.Entries {
		var scannedAt time.Time
		if entry.UpdatedParsed != nil {
			scannedAt = *entry.UpdatedParsed
		} else if entry.PublishedParsed != nil {
			scannedAt = *entry.PublishedParsed
		}
		if !scannedAt.IsZero() && !scannedAt.After(since) {
			continue
		}

		var pdf *atom.Link
		for _, link := range entry.Links {
			if link.Rel == relSubsection {
				if u := resolve(link.Href); u != "" {
					subsections = append(subsections, u)
				}
				continue
			}
			if !strings.HasPrefix(link.Type, typePDF) {
				continue
			}
			// enclosures win over alternate views
			if pdf == nil || (link.Rel == relEnclosure && pdf.Rel != relEnclosure) {
				pdf = link
			}
		}
		if pdf == nil || (pdf.Rel != relEnclosure && pdf.Rel != relAlternate && pdf.Rel != "") {
			continue
		}

		location := resolve(pdf.Href)
		if location == "" {
			continue
		}
		f := models.ScanFile{
			ID:        entry.ID,
			Name:      entry.Title,
			Location:  location,
			ScannedAt: scannedAt,
			MediaType: typePDF,
		}
		if f.ID == "" {
			f.ID = location
		}
		if f.Name == "" || !strings.HasSuffix(strings.ToLower(f.Name), ".pdf") {
			if u, err := url.Parse(location); err == nil {
				if b := path.Base(u.Path); strings.HasSuffix(strings.ToLower(b), ".pdf") {
					f.Name = b
				}
			}
		}
		if n, err := strconv.ParseInt(pdf.Length, 10, 64); err == nil {
			f.Size = n
		}
		if len(entry.Authors) > 0 {
			f.Station = entry.Authors[0].Name
		}
		if f.ScannedAt.IsZero() {
			f.ScannedAt = time.Now()
		}
		files = append(files, f)
	}

	return files, next, subsections, nil
}

// Open downloads one scan. Reading fails once more than the configured maximum
// has been read.
func (s *FeedSource) Open(ctx context.Context, f models.ScanFile) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Location, nil)
	if err != nil {
		return nil, err
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download scan %s: status %d", f.Name, resp.StatusCode)
	}
	if s.maxSize <= 0 {
		return resp.Body, nil
	}
	return &limitedReadCloser{rc: resp.Body, remaining: s.maxSize}, nil
}

// ErrTooLarge is returned when a scan exceeds the upload size limit.
var ErrTooLarge = errors.New("scan exceeds maximum allowed size")

type limitedReadCloser struct {
	rc        io.ReadCloser
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.rc.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

func (l *limitedReadCloser) Close() error {
	return l.rc.Close()
}
