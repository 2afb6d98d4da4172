package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var roster = NewRoster([]Member{
	{UserID: "u-alice", DisplayName: "alice"},
	{UserID: "u-bob", DisplayName: "bob"},
	{UserID: "u-space", DisplayName: "Mary Jane"},
})

func TestParseResolvesKnownHandles(t *testing.T) {
	got := Parse("hi @alice and @carol", roster)
	assert.Equal(t, []Mention{{UserID: "u-alice", Username: "alice"}}, got)
}

func TestParseIsCaseSensitive(t *testing.T) {
	assert.Empty(t, Parse("hey @Alice", roster))
}

func TestParseStopsAtNonWordCharacters(t *testing.T) {
	got := Parse("thanks @bob! and @alice.", roster)
	assert.Equal(t, []string{"u-bob", "u-alice"}, UserIDs(got))
}

func TestDisplayNamesWithSpacesNeverMatch(t *testing.T) {
	assert.Empty(t, Parse("@Mary Jane was fast", roster))
}

func TestUserIDsDeduplicates(t *testing.T) {
	got := Parse("@alice @bob @alice", roster)
	assert.Len(t, got, 3)
	assert.Equal(t, []string{"u-alice", "u-bob"}, UserIDs(got))
}

func TestParseNoMentions(t *testing.T) {
	assert.Empty(t, Parse("plain text, email a@", roster))
	assert.Empty(t, UserIDs(nil))
}

func TestSegments(t *testing.T) {
	got := Segments("run with @alice and @zed today", roster)
	assert.Equal(t, []Segment{
		{Text: "run with "},
		{Text: "@alice", UserID: "u-alice"},
		{Text: " and @zed today"},
	}, got)

	assert.Equal(t, []Segment{{Text: "@bob", UserID: "u-bob"}}, Segments("@bob", roster))
	assert.Nil(t, Segments("", roster))
}
