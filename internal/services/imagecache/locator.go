package imagecache

import (
	"fmt"
	"strings"
)

type SourceType string

const (
	SourceTypeRemote SourceType = "remote"
	SourceTypeFile   SourceType = "file"
)

type Source struct {
	Type     SourceType
	Location string
	Original string
}

// ParseLocator classifies a cache locator. http(s) URLs are remote; a
// "file:" prefix or a bare path names local storage.
func ParseLocator(locator string) (*Source, error) {
	if locator == "" {
		return nil, fmt.Errorf("empty locator")
	}

	src := &Source{Original: locator}
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		src.Type = SourceTypeRemote
		src.Location = locator
	case strings.HasPrefix(locator, "file://"):
		src.Type = SourceTypeFile
		src.Location = strings.TrimPrefix(locator, "file://")
	case strings.HasPrefix(locator, "file:"):
		src.Type = SourceTypeFile
		src.Location = strings.TrimPrefix(locator, "file:")
	case strings.Contains(locator, "://"):
		return nil, fmt.Errorf("unsupported locator scheme: %s", locator)
	default:
		src.Type = SourceTypeFile
		src.Location = locator
	}

	return src, nil
}
