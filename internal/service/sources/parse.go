package sources

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"peerplay/internal/domain"
)

// Addon stream titles pack the interesting fields into emoji-tagged text:
//
//	The.Movie.2021.1080p.WEB-DL
//	👤 120 💾 2.11 GB ⚙️ ThePirateBay
const (
	seedersTag  = "👤"
	sizeTag     = "💾"
	providerTag = "⚙️"
)

func parseStream(s stream) domain.SourceDescriptor {
	title := firstLine(s.Title)
	d := domain.SourceDescriptor{
		InfoHash: strings.ToLower(s.InfoHash),
		Title:    title,
		Seeders:  parseTaggedInt(s.Title, seedersTag),
		Size:     parseTaggedSize(s.Title, sizeTag),
		Provider: parseTaggedWord(s.Title, providerTag),
		Quality:  detectQuality(s.Name + " " + s.Title),
		FileIdx:  -1,
	}
	if s.FileIdx != nil {
		d.FileIdx = *s.FileIdx
	}
	d.Magnet = buildMagnet(d.InfoHash, title)
	return d
}

func buildMagnet(infoHash, name string) string {
	if infoHash == "" {
		return ""
	}
	magnet := "magnet:?xt=urn:btih:" + infoHash
	if name != "" {
		magnet += "&dn=" + url.QueryEscape(name)
	}
	return magnet
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// parseTaggedInt reads the integer following tag, 0 if absent or malformed.
func parseTaggedInt(text, tag string) int {
	fields := taggedFields(text, tag)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return n
}

// parseTaggedSize reads a "2.11 GB" style value following tag.
func parseTaggedSize(text, tag string) int64 {
	fields := taggedFields(text, tag)
	if len(fields) < 2 {
		return 0
	}
	size, err := humanize.ParseBytes(fields[0] + " " + fields[1])
	if err != nil {
		return 0
	}
	return int64(size)
}

func parseTaggedWord(text, tag string) string {
	fields := taggedFields(text, tag)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// taggedFields returns the whitespace-split fields following the first
// occurrence of tag, stopping at the next tag.
func taggedFields(text, tag string) []string {
	i := strings.Index(text, tag)
	if i < 0 {
		return nil
	}
	rest := text[i+len(tag):]
	for _, stop := range []string{seedersTag, sizeTag, providerTag} {
		if stop == tag {
			continue
		}
		if j := strings.Index(rest, stop); j >= 0 {
			rest = rest[:j]
		}
	}
	return strings.Fields(rest)
}

func detectQuality(text string) string {
	lower := strings.ToLower(text)
	for _, q := range []string{"2160p", "1080p", "720p", "480p"} {
		if strings.Contains(lower, q) {
			return q
		}
	}
	if strings.Contains(lower, "4k") {
		return "2160p"
	}
	return ""
}
