package evidence

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Vocabulary of substrings worth keeping when scanning file heads.
// Everything is matched case-insensitively against extracted ASCII runs;
// a run that contains none of these is discarded. The list covers both
// platform indicators and the camera metadata markers the detector uses
// to rule files out.
var vocabulary = []string{
	// platform and container markers
	"tiktok",
	"douyin",
	"bytedance",
	"musically",
	"musical.ly",
	"aigc_info",
	"aigc_label_type",
	"vid_md5",
	"vid:",
	"lavf",
	"mp4v",
	"isom",
	// camera metadata markers
	"focal length",
	"aperture",
	"exposure time",
	"f-number",
	"shutter speed",
	"iso speed",
}

type vocabMatcher struct {
	matcher *ahocorasick.Matcher
}

func newVocabMatcher(terms []string) *vocabMatcher {
	normalized := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		normalized = append(normalized, term)
	}
	return &vocabMatcher{matcher: ahocorasick.NewStringMatcher(normalized)}
}

func (m *vocabMatcher) anyMatch(lower []byte) bool {
	return len(m.matcher.MatchThreadSafe(lower)) > 0
}
