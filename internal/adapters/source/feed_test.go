package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
)

func TestFeedSource_FetchNew_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Branch 012 scanner</title>
  <entry>
    <title>scan-0001.pdf</title>
    <id>urn:scan:0001</id>
    <updated>2026-02-20T12:00:00Z</updated>
    <author><name>MFP-3F</name></author>
    <link rel="enclosure" href="/files/scan-0001.pdf" type="application/pdf" length="2048"/>
    <link rel="alternate" href="/preview/scan-0001.png" type="image/png"/>
  </entry>
  <entry>
    <title>Cover sheet preview</title>
    <id>urn:scan:preview</id>
    <link rel="alternate" href="/preview/x.png" type="image/png"/>
  </entry>
</feed>`)
	}))
	defer server.Close()

	src := NewFeedSource(server.URL+"/feed.xml", "", "", 0, zap.NewNop())
	files, err := src.FetchNew(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 scan, got %d", len(files))
	}
	f := files[0]
	if f.Location != server.URL+"/files/scan-0001.pdf" {
		t.Errorf("Expected resolved location, got '%s'", f.Location)
	}
	if f.Size != 2048 {
		t.Errorf("Expected size 2048, got %d", f.Size)
	}
	if f.Station != "MFP-3F" {
		t.Errorf("Expected station, got '%s'", f.Station)
	}
}

func TestFeedSource_FetchNew_SkipsOlderThanWatermark(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>old.pdf</title><id>old</id><updated>2026-02-19T12:00:00Z</updated>
    <link rel="enclosure" href="/old.pdf" type="application/pdf"/>
  </entry>
  <entry>
    <title>same.pdf</title><id>same</id><updated>2026-02-20T12:00:00Z</updated>
    <link rel="enclosure" href="/same.pdf" type="application/pdf"/>
  </entry>
  <entry>
    <title>new.pdf</title><id>new</id><updated>2026-02-21T12:00:00Z</updated>
    <link rel="enclosure" href="/new.pdf" type="application/pdf"/>
  </entry>
</feed>`)
	}))
	defer server.Close()

	since := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	src := NewFeedSource(server.URL+"/feed.xml", "", "", 0, nil)
	files, err := src.FetchNew(context.Background(), since)
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}
	if len(files) != 1 || files[0].ID != "new" {
		t.Fatalf("Expected only the new scan, got %+v", files)
	}
}

func TestFeedSource_FetchNew_Pagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>p2.pdf</title>
    <id>urn:scan:p2</id>
    <link rel="enclosure" href="http://example.com/p2.pdf" type="application/pdf"/>
  </entry>
</feed>`)
		} else {
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>p1.pdf</title>
    <id>urn:scan:p1</id>
    <link rel="enclosure" href="http://example.com/p1.pdf" type="application/pdf"/>
  </entry>
  <link rel="next" href="%s?page=2"/>
</feed>`, r.URL.Path)
		}
	}))
	defer server.Close()

	src := NewFeedSource(server.URL+"/feed.xml", "", "", 0, nil)
	files, err := src.FetchNew(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 scans across pages, got %d", len(files))
	}
}

func TestFeedSource_FetchNew_StationTraversal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		if r.URL.Path == "/stations/3f" {
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>traversed.pdf</title>
    <id>urn:scan:traversed</id>
    <link rel="enclosure" href="/files/traversed.pdf" type="application/pdf"/>
  </entry>
</feed>`)
		} else {
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>All stations</title>
  <entry>
    <title>3rd floor</title>
    <link rel="subsection" href="/stations/3f" type="application/atom+xml"/>
  </entry>
</feed>`)
		}
	}))
	defer server.Close()

	src := NewFeedSource(server.URL, "", "", 0, nil)
	files, err := src.FetchNew(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 scan via traversal, got %d", len(files))
	}
	if files[0].Name != "traversed.pdf" {
		t.Errorf("Expected 'traversed.pdf', got %s", files[0].Name)
	}
}

func TestFeedSource_FetchNew_InvalidXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not xml`)
	}))
	defer server.Close()

	src := NewFeedSource(server.URL+"/feed.xml", "", "", 0, nil)
	files, err := src.FetchNew(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Expected nil error (graceful skip), got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected 0 scans, got %d", len(files))
	}
}

func TestFeedSource_FetchNew_NoURL(t *testing.T) {
	src := NewFeedSource("", "", "", 0, nil)
	if _, err := src.FetchNew(context.Background(), time.Time{}); err == nil {
		t.Fatal("Expected error when URL is missing")
	}
}

func TestFeedSource_Open_Errors(t *testing.T) {
	server404 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server404.Close()

	src := NewFeedSource("", "", "", 100, nil)
	if _, err := src.Open(context.Background(), models.ScanFile{Location: server404.URL}); err == nil {
		t.Fatal("Expected error for 404")
	}

	serverLarge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 200))
	}))
	defer serverLarge.Close()

	rc, err := src.Open(context.Background(), models.ScanFile{Location: serverLarge.URL})
	if err != nil {
		t.Fatalf("Expected no error on call, got %v", err)
	}
	defer rc.Close()

	if _, err := io.ReadAll(rc); err != ErrTooLarge {
		t.Fatalf("Expected ErrTooLarge during read, got %v", err)
	}
}

func TestFeedSource_Authentication(t *testing.T) {
	username := "scanner"
	password := "pass"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != username || p != password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom"><entry><title>auth.pdf</title><id>auth-1</id><link rel="enclosure" href="http://example.com/auth.pdf" type="application/pdf"/></entry></feed>`)
	}))
	defer server.Close()

	src := NewFeedSource(server.URL+"/feed.xml", username, password, 0, nil)
	files, err := src.FetchNew(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("FetchNew with auth failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected 1 scan, got %d", len(files))
	}

	wrong := NewFeedSource(server.URL+"/feed.xml", "wrong", "wrong", 0, nil)
	files, err = wrong.FetchNew(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Expected nil error (graceful skip), got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected 0 scans with wrong credentials, got %d", len(files))
	}
}
