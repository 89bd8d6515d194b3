// Package filter parses annotation filter strings into predicates.
//
// A filter string is whitespace-separated: tokens starting with '@' match
// against the creator, tokens starting with '~' are flags, everything else is
// a free-text term matched against the annotation body.
package filter

import (
	"strings"

	"github.com/lectern-labs/lectern/internal/domain/annotation"
)

// Flag is a recognized filter flag.
type Flag string

const (
	FlagMe     Flag = "me"
	FlagHour   Flag = "hour"
	FlagDay    Flag = "day"
	FlagWeek   Flag = "week"
	FlagUnread Flag = "unread"
)

const (
	hourMs = 3_600_000
	dayMs  = 86_400_000
	weekMs = 604_800_000
)

// Predicate is a parsed filter (immutable once parsed).
type Predicate struct {
	textTerms []string
	members   []string
	flags     map[Flag]bool
}

// Parse splits a raw filter string into a Predicate. Unrecognized flags are
// accepted and ignored, so a typo narrows nothing rather than matching
// nothing.
func Parse(raw string) Predicate {
	p := Predicate{flags: map[Flag]bool{}}
	for _, word := range strings.Fields(raw) {
		switch {
		case strings.HasPrefix(word, "@"):
			p.members = append(p.members, word[1:])
		case strings.HasPrefix(word, "~"):
			switch f := Flag(word[1:]); f {
			case FlagMe, FlagHour, FlagDay, FlagWeek, FlagUnread:
				p.flags[f] = true
			}
		default:
			p.textTerms = append(p.textTerms, word)
		}
	}
	return p
}

// TextTerms returns the free-text terms in input order.
func (p Predicate) TextTerms() []string { return p.textTerms }

// Members returns the member filters in input order.
func (p Predicate) Members() []string { return p.members }

// HasFlag reports whether a recognized flag was present.
func (p Predicate) HasFlag(f Flag) bool { return p.flags[f] }

// IsEmpty reports whether the predicate constrains nothing.
func (p Predicate) IsEmpty() bool {
	return len(p.textTerms) == 0 && len(p.members) == 0 && len(p.flags) == 0
}

// Matches applies the predicate to a record. All present flags are ANDed,
// member filters are ORed, and every text term must match the selected text
// or the root message body. A record carrying neither text field passes all
// text terms; that permissive default is intended, keeping pindrops visible
// under text filters.
func (p Predicate) Matches(rec *annotation.Record, viewerID string, nowMs int64) bool {
	if p.flags[FlagMe] && rec.Creator() != viewerID {
		return false
	}
	if p.flags[FlagHour] && rec.Timestamp() <= nowMs-hourMs {
		return false
	}
	if p.flags[FlagDay] && rec.Timestamp() <= nowMs-dayMs {
		return false
	}
	if p.flags[FlagWeek] && rec.Timestamp() <= nowMs-weekMs {
		return false
	}
	if p.flags[FlagUnread] && !rec.Unread().Some() {
		return false
	}

	if len(p.members) > 0 {
		creator := strings.ToLower(rec.Creator())
		matched := false
		for _, m := range p.members {
			if strings.Contains(creator, strings.ToLower(m)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if rec.SelectedText() == "" && rec.Root() == nil {
		return true
	}
	selected := strings.ToLower(rec.SelectedText())
	var rootBody string
	if rec.Root() != nil {
		rootBody = strings.ToLower(rec.Root().Body)
	}
	for _, term := range p.textTerms {
		t := strings.ToLower(term)
		if !strings.Contains(selected, t) && !strings.Contains(rootBody, t) {
			return false
		}
	}
	return true
}
