package rename

import (
	"fmt"
	"regexp"
	"strconv"
)

// Release-name conventions tried in order; the first match wins.
var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bS(\d{1,2})[\s._-]*E(\d{1,3})\b`),
	regexp.MustCompile(`(?i)\bSeason[\s._-]*(\d{1,2})[\s._-]*(?:Episode|Ep)[\s._-]*(\d{1,3})\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`),
}

var episodeOnly = regexp.MustCompile(`(?i)\b(?:EP|Episode)[\s._-]*(\d{1,3})\b`)

// Episode is the season/episode pair found in a filename. Empty strings mean
// not found.
type Episode struct {
	Season  string
	Episode string
}

// ExtractEpisode looks for season and episode numbers in stem. Numbers come
// back zero-padded to two digits.
func ExtractEpisode(stem string) Episode {
	for _, re := range episodePatterns {
		if m := re.FindStringSubmatch(stem); m != nil {
			return Episode{Season: pad(m[1]), Episode: pad(m[2])}
		}
	}
	if m := episodeOnly.FindStringSubmatch(stem); m != nil {
		return Episode{Episode: pad(m[1])}
	}
	return Episode{}
}

func pad(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}
	return fmt.Sprintf("%02d", n)
}
