package bot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

// Free-text parameter extraction for action handlers. These are pure
// functions so each parser can be tested against literal strings without a
// live platform client.

var (
	firstIntPattern   = regexp.MustCompile(`(\d+)`)
	invitePairPattern = regexp.MustCompile(`(\d+)\s+(\d+)`)
)

// defaultCustomTitle is used when a set_title command carries no title text.
const defaultCustomTitle = "member"

// parseTrailing returns the message text after the command name, trimmed.
func parseTrailing(text, commandName string) string {
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimPrefix(text, commandName))
}

// parseCustomTitle extracts the admin title following the command name.
// An empty capture falls back to the default title.
func parseCustomTitle(text, commandName string) string {
	title := parseTrailing(text, commandName)
	if title == "" {
		return defaultCustomTitle
	}
	return title
}

// parseMuteMinutes extracts an optional duration in minutes from the
// message text. ok is false when no number is present.
func parseMuteMinutes(text, commandName string) (int, bool) {
	rest := parseTrailing(text, commandName)
	match := firstIntPattern.FindString(rest)
	if match == "" {
		return 0, false
	}
	minutes, err := strconv.Atoi(match)
	if err != nil || minutes <= 0 {
		return 0, false
	}
	return minutes, true
}

// parseInviteArgs extracts the member limit and expiry (minutes) for
// create_invite_link: two space-separated integers after the command name.
func parseInviteArgs(text, commandName string) (memberLimit, expireMinutes int, ok bool) {
	rest := parseTrailing(text, commandName)
	match := invitePairPattern.FindStringSubmatch(rest)
	if match == nil {
		return 0, 0, false
	}

	memberLimit, err := strconv.Atoi(match[1])
	if err != nil || memberLimit <= 0 {
		return 0, 0, false
	}
	expireMinutes, err = strconv.Atoi(match[2])
	if err != nil || expireMinutes <= 0 {
		return 0, 0, false
	}
	return memberLimit, expireMinutes, true
}

// parseMentionedUser resolves the first user mention in a message. Rich
// text_mention entities carry the user directly; plain @mentions only carry
// a handle, which the platform offers no way to resolve to an id, so those
// return nil with the handle for the caller's error message.
func parseMentionedUser(msg *models.Message) (*models.User, string) {
	if msg == nil {
		return nil, ""
	}
	for _, entity := range msg.Entities {
		switch entity.Type {
		case models.MessageEntityTypeTextMention:
			if entity.User != nil {
				return entity.User, "@" + entity.User.Username
			}
		case models.MessageEntityTypeMention:
			end := entity.Offset + entity.Length
			if entity.Offset >= 0 && end <= len(msg.Text) {
				return nil, msg.Text[entity.Offset:end]
			}
		}
	}
	return nil, ""
}

// displayName renders a user for acknowledgements and log entries,
// preferring the platform handle.
func displayName(user *models.User) string {
	if user == nil {
		return ""
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		return name
	}
	return strconv.FormatInt(user.ID, 10)
}
