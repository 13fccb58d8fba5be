package intake

import (
	"net/url"
	"regexp"

	"github.com/BearBump/AppWatch/internal/models"
)

var (
	storeLinkRe = regexp.MustCompile(`https?://(?:apps|itunes)\.apple\.com/[^\s<>|)]+`)
	pathIDRe    = regexp.MustCompile(`/id(\d{5,})`)
	queryIDRe   = regexp.MustCompile(`^\d{5,}$`)
)

// ParseStoreLink finds the first store link in text and extracts its catalog id,
// from the "/id<digits>" path segment or an "id" query parameter.
func ParseStoreLink(text string) (models.Identity, string, bool) {
	link := storeLinkRe.FindString(text)
	if link == "" {
		return models.Identity{}, "", false
	}
	if m := pathIDRe.FindStringSubmatch(link); m != nil {
		return models.Identity{ID: m[1]}, link, true
	}
	u, err := url.Parse(link)
	if err != nil {
		return models.Identity{}, link, false
	}
	if id := u.Query().Get("id"); queryIDRe.MatchString(id) {
		return models.Identity{ID: id}, link, true
	}
	return models.Identity{}, link, false
}
