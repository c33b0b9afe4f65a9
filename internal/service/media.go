package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type MediaInfo struct {
	VideoID  string
	Title    string
	Channel  string
	Duration time.Duration
}

// MediaResolver reads video metadata from a YouTube watch page.
type MediaResolver struct {
	httpClient *http.Client
	baseURL    string
}

func NewMediaResolver(timeout time.Duration) *MediaResolver {
	return &MediaResolver{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://www.youtube.com",
	}
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)

// ExtractVideoID accepts a bare id or a youtube.com / youtu.be link.
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if videoIDPattern.MatchString(input) {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("not a video id or link: %q", input)
	}

	var id string
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case strings.HasSuffix(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			id = v
		} else if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
			id = strings.Trim(rest, "/")
		} else if rest, ok := strings.CutPrefix(u.Path, "/embed/"); ok {
			id = strings.Trim(rest, "/")
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("no video id in %q", input)
	}
	return id, nil
}

func (r *MediaResolver) Resolve(ctx context.Context, videoID string) (MediaInfo, error) {
	pageURL := fmt.Sprintf("%s/watch?v=%s", r.baseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("fetch watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MediaInfo{}, fmt.Errorf("fetch watch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("parse watch page: %w", err)
	}

	info := MediaInfo{VideoID: videoID}
	info.Title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
	info.Channel, _ = doc.Find(`[itemprop="author"] [itemprop="name"]`).First().Attr("content")
	if info.Channel == "" {
		info.Channel = strings.TrimSpace(doc.Find(`[itemprop="author"] [itemprop="name"]`).First().Text())
	}

	if raw, ok := doc.Find(`meta[itemprop="duration"]`).First().Attr("content"); ok {
		d, err := ParseISODuration(raw)
		if err != nil {
			return MediaInfo{}, err
		}
		info.Duration = d
	}

	if info.Title == "" {
		return MediaInfo{}, fmt.Errorf("watch page for %s has no title", videoID)
	}
	return info, nil
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the subset of ISO-8601 durations used for video
// lengths, e.g. "PT3M20S" or "P1DT2H".
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}
