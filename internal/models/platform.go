package models

import "fmt"

// Platform tags a supported outreach target.
type Platform string

const (
	PlatformReddit  Platform = "reddit"
	PlatformTwitter Platform = "twitter"
)

var knownPlatforms = map[Platform]string{
	PlatformReddit:  "Reddit",
	PlatformTwitter: "X (Twitter)",
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if _, ok := knownPlatforms[p]; !ok {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

func (p Platform) DisplayName() string {
	if name, ok := knownPlatforms[p]; ok {
		return name
	}
	return string(p)
}
