package render

import (
	"strings"

	"golang.org/x/text/language"
)

// Supported display languages, English first so it wins ties.
var supported = []language.Tag{language.English, language.Arabic}

var matcher = language.NewMatcher(supported)

// MatchLanguage picks the best supported language for a tag or Accept-Language value.
// An empty or unparsable value yields English.
func MatchLanguage(value string) language.Tag {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.English
	}

	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supported[idx]
}

// IsRTL reports whether tag is written right to left
func IsRTL(tag language.Tag) bool {
	base, _ := tag.Base()
	return base.String() == "ar"
}
