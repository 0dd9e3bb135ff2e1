package service

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

const localesDir = "locales"

//go:embed locales/*.toml
var localeFS embed.FS

// Localizer renders bot texts in the interface language. Messages missing from
// that language fall back to English, and unknown ids render as the id itself.
type Localizer struct {
	localizer *i18n.Localizer
	lang      language.Tag
}

// NewLocalizer picks the closest bundled language, so "ru-RU" resolves to ru.
func NewLocalizer(lang string) (*Localizer, error) {
	requested, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("invalid interface language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := localeFS.ReadDir(localesDir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".toml") {
			continue
		}
		data, err := localeFS.ReadFile(path.Join(localesDir, file.Name()))
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, file.Name()); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file.Name(), err)
		}
	}

	supported := bundle.LanguageTags()
	_, index, confidence := language.NewMatcher(supported).Match(requested)
	if confidence == language.No {
		return nil, fmt.Errorf("interface language %q is not supported", lang)
	}
	matched := supported[index]

	return &Localizer{
		localizer: i18n.NewLocalizer(bundle, matched.String(), language.English.String()),
		lang:      matched,
	}, nil
}

func (s *Localizer) Lang() language.Tag {
	return s.lang
}

func (s *Localizer) Localize(messageID string, data map[string]any) string {
	msg, err := s.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}
