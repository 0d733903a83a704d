package bot

import (
	"strings"

	"github.com/dmelo/groupwarden/internal/database"
)

// MatchCommand selects at most one enabled command definition for a
// message. Reply-bound definitions are only candidates when the message is
// itself a reply, and direct definitions only when it is not. A definition
// matches when its name is a prefix of the trimmed message text; requiring
// the name at the start keeps unrelated chatter from accidentally
// containing a command name mid-sentence. Ties resolve to the earliest
// definition in creation order, which is the order the store returns.
func MatchCommand(definitions []database.Command, text string, isReply bool) *database.Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	wanted := database.TriggerDirect
	if isReply {
		wanted = database.TriggerReply
	}

	for i := range definitions {
		def := &definitions[i]
		if !def.IsEnabled || def.TriggerType != wanted || def.Name == "" {
			continue
		}
		if strings.HasPrefix(text, def.Name) {
			return def
		}
	}
	return nil
}
