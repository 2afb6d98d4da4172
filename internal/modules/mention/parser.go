// Package mention resolves @handles in free text against the member roster.
package mention

import "regexp"

// Handles are word characters only, so a display name containing a space can
// never be mentioned.
var tokenPattern = regexp.MustCompile(`@(\w+)`)

type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type Mention struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Roster indexes members by exact display name.
type Roster map[string]Member

func NewRoster(members []Member) Roster {
	r := make(Roster, len(members))
	for _, m := range members {
		r[m.DisplayName] = m
	}
	return r
}

// Parse returns one Mention per @token that exactly matches a member's
// display name. Unmatched tokens are ignored.
func Parse(text string, roster Roster) []Mention {
	var out []Mention
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		member, ok := roster[m[1]]
		if !ok {
			continue
		}
		out = append(out, Mention{UserID: member.UserID, Username: member.DisplayName})
	}
	return out
}

// UserIDs de-duplicates mentions in first seen order.
func UserIDs(mentions []Mention) []string {
	seen := make(map[string]struct{}, len(mentions))
	ids := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	return ids
}

type Segment struct {
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
}

// Segments splits text for rendering. Mentions are resolved against the
// current roster, so renamed members stop highlighting.
func Segments(text string, roster Roster) []Segment {
	var out []Segment
	last := 0
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(text, -1) {
		member, ok := roster[text[loc[2]:loc[3]]]
		if !ok {
			continue
		}
		if loc[0] > last {
			out = append(out, Segment{Text: text[last:loc[0]]})
		}
		out = append(out, Segment{Text: text[loc[0]:loc[1]], UserID: member.UserID})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}
