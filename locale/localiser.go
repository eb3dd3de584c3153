// Package locale provides message localisation for command replies:
// per-ID override strings keyed by locale tag, matched with
// golang.org/x/text language matching, with printf-style substitution.
package locale

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"

	chatkit "github.com/kapu/chatkit"
)

// IDNotFound is the localisation ID of the reply sent when an interaction
// matched no command.
const IDNotFound = "client:interaction_not_found"

// ID builds the canonical localisation ID for a command field, e.g.
// "slash:config set:check:cooldown".
func ID(kind chatkit.CommandKind, commandName, fieldType, fieldName string) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, commandName, fieldType, fieldName)
}

type entry struct {
	tags     []language.Tag
	messages map[language.Tag]string
	matcher  language.Matcher
}

// Localiser stores per-locale override strings for message IDs. Lookups
// fall back through x/text language matching to the caller-supplied
// default, so an unconfigured ID or locale is never an error.
type Localiser struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewLocaliser() *Localiser {
	return &Localiser{entries: make(map[string]*entry)}
}

// SetOverride registers a message variant for one ID and locale. The
// locale must be a well-formed BCP 47 tag.
func (l *Localiser) SetOverride(id, locale, message string) error {
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("locale: parsing %q: %w", locale, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	if e == nil {
		e = &entry{messages: make(map[language.Tag]string)}
		l.entries[id] = e
	}
	if _, exists := e.messages[tag]; !exists {
		e.tags = append(e.tags, tag)
		e.matcher = language.NewMatcher(e.tags)
	}
	e.messages[tag] = message
	return nil
}

// SetOverrides registers locale→message variants for one ID, failing on
// the first malformed tag.
func (l *Localiser) SetOverrides(id string, variants map[string]string) error {
	for locale, message := range variants {
		if err := l.SetOverride(id, locale, message); err != nil {
			return err
		}
	}
	return nil
}

// Localise renders the message for id in the closest registered locale,
// falling back to the supplied default. Args are substituted with
// fmt.Sprintf when present.
func (l *Localiser) Localise(id, locale, fallback string, args ...any) string {
	message := l.lookup(id, locale)
	if message == "" {
		message = fallback
	}
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

func (l *Localiser) lookup(id, locale string) string {
	if locale == "" {
		return ""
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	e := l.entries[id]
	if e == nil {
		return ""
	}
	wanted, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	_, index, confidence := e.matcher.Match(wanted)
	if confidence == language.No {
		return ""
	}
	return e.messages[e.tags[index]]
}
