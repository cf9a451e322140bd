package participants

import (
	"strings"

	"golang.org/x/text/cases"
)

var referencePrefixes = []string{"https://", "http://", "t.me/"}

// NormalizeReference folds case and strips link and "@" prefixes
func NormalizeReference(ref string) string {
	ref = cases.Fold().String(strings.TrimSpace(ref))
	for _, prefix := range referencePrefixes {
		ref = strings.TrimPrefix(ref, prefix)
	}
	return strings.TrimPrefix(ref, "@")
}

// Resolve finds a chat participant by handle or first name.
// The first match in first-seen order wins.
func (d *Directory) Resolve(chatID int64, ref string) (Participant, error) {
	ref = NormalizeReference(ref)
	if ref == "" {
		return Participant{}, ErrNotFound
	}

	c := d.chat(chatID, false)
	if c == nil {
		return Participant{}, ErrNotFound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	fold := cases.Fold()
	for _, id := range c.order {
		p := c.byID[id]
		if p.Handle == ref || fold.String(p.FirstName) == ref {
			return p, nil
		}
	}
	return Participant{}, ErrNotFound
}
