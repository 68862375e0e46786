package installer

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

type Kind int

const (
	KindUIPackage Kind = iota
	KindAudioBank
	KindMessageBundle
)

func (k Kind) String() string {
	switch k {
	case KindUIPackage:
		return "ui_package"
	case KindAudioBank:
		return "audio_bank"
	case KindMessageBundle:
		return "message_bundle"
	default:
		return "unknown"
	}
}

const (
	audioBankMarker     = "cafe_barista_men"
	messageBundlePrefix = "AllMessage_"
)

var ErrUnknownLanguage = errors.New("unknown language code")

// languageFolders maps the short code carried in a message bundle's file
// name to the system's language folder.
var languageFolders = map[string]string{
	"JpJa": "JpJapanese",
	"UsEn": "UsEnglish",
	"UsFr": "UsFrench",
	"UsEs": "UsSpanish",
	"UsPt": "UsPortuguese",
	"EuEn": "EuEnglish",
	"EuFr": "EuFrench",
	"EuDe": "EuGerman",
	"EuIt": "EuItalian",
	"EuEs": "EuSpanish",
	"EuNl": "EuDutch",
	"EuPt": "EuPortuguese",
	"EuRu": "EuRussian",
}

// LanguageFolder returns the folder for a language code.
func LanguageFolder(code string) (string, bool) {
	folder, ok := languageFolders[code]
	return folder, ok
}

// LanguageCodes lists the known language codes in sorted order.
func LanguageCodes() []string {
	codes := make([]string, 0, len(languageFolders))
	for code := range languageFolders {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Artifact is a diff file found inside an extracted theme.
type Artifact struct {
	// Path is relative to the theme folder, slash separated.
	Path     string
	BaseName string
	Kind     Kind
	Language string
	// Target is the system file the diff applies to, relative to the
	// system root and slash separated.
	Target string
}

// Classify resolves an artifact path to the system file it patches.
func Classify(rel string) (Artifact, error) {
	rel = filepath.ToSlash(rel)
	name := path.Base(rel)
	base := strings.TrimSuffix(name, path.Ext(name))

	a := Artifact{Path: rel, BaseName: base}

	switch {
	case strings.Contains(base, audioBankMarker):
		a.Kind = KindAudioBank
		a.Target = "Common/Sound/Men/" + base + ".bfsar"
	case strings.HasPrefix(base, messageBundlePrefix):
		a.Kind = KindMessageBundle
		a.Language = strings.TrimPrefix(base, messageBundlePrefix)
		folder, ok := LanguageFolder(a.Language)
		if !ok {
			return a, fmt.Errorf("%w %q in %s", ErrUnknownLanguage, a.Language, rel)
		}
		a.Target = folder + "/Message/AllMessage.szs"
	default:
		a.Kind = KindUIPackage
		a.Target = "Common/Package/" + base + ".pack"
	}

	return a, nil
}
