package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gopkg.in/yaml.v3"

	"build-notifier/internal/domain"
)

//go:embed locales
var LocalesFS embed.FS

// Translator resolves message keys for one language. Keys under "md." hold
// MarkdownV2 templates; every other key is plain text.
type Translator struct {
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := filepath.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T formats the template stored under key. Unknown keys are returned as is.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Markdown formats a MarkdownV2 template, escaping every string argument.
func (t *Translator) Markdown(key string, args ...interface{}) string {
	escaped := make([]interface{}, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			escaped[i] = Escape(s)
			continue
		}
		escaped[i] = a
	}
	return t.T(key, escaped...)
}

// Keys lists the loaded keys in sorted order.
func (t *Translator) Keys() []string {
	keys := make([]string, 0, len(t.translations))
	for k := range t.translations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Escape quotes the MarkdownV2 reserved characters of s.
func Escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

// PlanNameText renders a plan name validation error as plain text.
func (t *Translator) PlanNameText(err error) string {
	var pe *domain.PlanNameError
	if !errors.As(err, &pe) {
		return err.Error()
	}
	key := "validation." + string(pe.Reason)
	if pe.Reason == domain.PlanNameEmpty {
		return t.T(key)
	}
	return t.T(key, pe.Part)
}
