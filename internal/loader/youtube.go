package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// YouTubeLoader loads the caption transcript of a YouTube video through the
// innertube API. Segment timings are dropped; the title and author are
// attached as metadata.
type YouTubeLoader struct {
	client   *http.Client
	language string
}

// NewYouTubeLoader returns a loader fetching transcripts in defaultLanguage
// unless a Source names its own.
func NewYouTubeLoader(client *http.Client, defaultLanguage string) *YouTubeLoader {
	return &YouTubeLoader{client: client, language: defaultLanguage}
}

// Load implements Loader.
func (l *YouTubeLoader) Load(ctx context.Context, src Source) ([]Block, error) {
	id, err := VideoID(src.Locator)
	if err != nil {
		return nil, err
	}
	lang := src.Language
	if lang == "" {
		lang = l.language
	}

	// youtube.Client keeps per-session state, so each load gets its own.
	yt := &youtube.Client{HTTPClient: l.client}
	video, err := yt.GetVideoContext(ctx, id)
	if err != nil {
		return nil, videoError(id, err)
	}

	track, ok := pickTrack(video.CaptionTracks, lang)
	if !ok {
		return nil, fmt.Errorf("%w: video %s has no %q captions", ErrNoTranscript, id, lang)
	}

	transcript, err := yt.GetTranscriptCtx(ctx, video, track.LanguageCode)
	if err != nil {
		return nil, videoError(id, err)
	}
	parts := make([]string, 0, len(transcript))
	for _, seg := range transcript {
		if t := normalizeSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: video %s has an empty transcript", ErrNoTranscript, id)
	}

	meta := map[string]string{
		"source":   src.Locator,
		"video_id": id,
		"language": lang,
	}
	if video.Title != "" {
		meta["title"] = video.Title
	}
	if video.Author != "" {
		meta["author"] = video.Author
	}
	return []Block{{Text: strings.Join(parts, " "), Metadata: meta}}, nil
}

// videoError maps client failures onto the loader sentinels.
func videoError(id string, err error) error {
	var status *youtube.ErrPlayabiltyStatus
	var code youtube.ErrUnexpectedStatusCode
	switch {
	case errors.Is(err, youtube.ErrTranscriptDisabled):
		return fmt.Errorf("%w: captions are disabled for video %s", ErrNoTranscript, id)
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.As(err, &status):
		return fmt.Errorf("%w: video %s: %v", ErrVideoUnavailable, id, err)
	case errors.As(err, &code) && int(code) == http.StatusNotFound:
		return fmt.Errorf("%w: video %s: %v", ErrVideoUnavailable, id, err)
	}
	return fmt.Errorf("loader: youtube: video %s: %w", id, err)
}

// pickTrack prefers a manual caption track in lang over an auto-generated
// one, matching on the primary language subtag.
func pickTrack(tracks []youtube.CaptionTrack, lang string) (youtube.CaptionTrack, bool) {
	want := primaryLang(lang)
	var auto *youtube.CaptionTrack
	for i := range tracks {
		if primaryLang(tracks[i].LanguageCode) != want {
			continue
		}
		if tracks[i].Kind != "asr" {
			return tracks[i], true
		}
		if auto == nil {
			auto = &tracks[i]
		}
	}
	if auto != nil {
		return *auto, true
	}
	return youtube.CaptionTrack{}, false
}

func primaryLang(code string) string {
	code = strings.ToLower(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

// VideoID extracts the video id from watch, short-link, shorts, embed and
// live URLs.
func VideoID(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, locator)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				id, _, _ = strings.Cut(rest, "/")
				break
			}
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: no video id in %q", ErrInvalidSource, locator)
	}
	if _, err := youtube.ExtractVideoID(id); err != nil || len(id) != 11 {
		return "", fmt.Errorf("%w: no video id in %q", ErrInvalidSource, locator)
	}
	return id, nil
}
