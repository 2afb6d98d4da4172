package http

import (
	"strings"

	"anoa.com/runclub/pkg/changefeed"
	"github.com/google/uuid"
)

// AllowedTopic reports whether a caller may listen on topic. Notification
// topics are private to their recipient and the raw booking feed is for
// admins only.
func AllowedTopic(topic, userID string, admin bool) bool {
	switch topic {
	case changefeed.TopicPosts, changefeed.TopicLeaderboard, changefeed.TopicUsers:
		return true
	case changefeed.TopicBookings:
		return admin
	}

	if postID, ok := strings.CutPrefix(topic, changefeed.CommentsTopic("")); ok {
		_, err := uuid.Parse(postID)
		return err == nil
	}
	if owner, ok := strings.CutPrefix(topic, changefeed.NotificationsTopic("")); ok {
		return owner == userID
	}
	return false
}

// ParseTopics splits a comma separated topic list, dropping blanks and
// duplicates.
func ParseTopics(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		t := strings.TrimSpace(part)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
