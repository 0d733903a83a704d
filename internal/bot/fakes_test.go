package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/dmelo/groupwarden/internal/database"
)

// call records one platform invocation for assertions.
type call struct {
	method string
	chatID int64
	userID int64
	text   string
	msgID  int
}

// fakeClient implements platform.Client, recording calls and failing any
// method listed in failOn.
type fakeClient struct {
	mu     sync.Mutex
	calls  []call
	failOn map[string]error

	me     models.User
	admins []models.ChatMember
	member *models.ChatMember
	chat   *models.ChatFullInfo
	link   *models.ChatInviteLink
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		failOn: map[string]error{},
		me:     models.User{ID: 99, Username: "warden_bot", IsBot: true},
		chat:   &models.ChatFullInfo{Title: "Test Group"},
		link:   &models.ChatInviteLink{InviteLink: "https://t.me/+abc"},
	}
}

func (f *fakeClient) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.failOn[c.method]
}

func (f *fakeClient) callsTo(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeClient) GetMe(context.Context) (*models.User, error) {
	if err := f.record(call{method: "GetMe"}); err != nil {
		return nil, err
	}
	me := f.me
	return &me, nil
}

func (f *fakeClient) SendMessage(_ context.Context, chatID int64, text string) error {
	return f.record(call{method: "SendMessage", chatID: chatID, text: text})
}

func (f *fakeClient) PinMessage(_ context.Context, chatID int64, messageID int) error {
	return f.record(call{method: "PinMessage", chatID: chatID, msgID: messageID})
}

func (f *fakeClient) UnpinMessage(_ context.Context, chatID int64, messageID int) error {
	return f.record(call{method: "UnpinMessage", chatID: chatID, msgID: messageID})
}

func (f *fakeClient) UnpinAllMessages(_ context.Context, chatID int64) error {
	return f.record(call{method: "UnpinAllMessages", chatID: chatID})
}

func (f *fakeClient) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	return f.record(call{method: "DeleteMessage", chatID: chatID, msgID: messageID})
}

func (f *fakeClient) RestrictMember(_ context.Context, chatID, userID int64, _ *models.ChatPermissions, _ time.Time) error {
	return f.record(call{method: "RestrictMember", chatID: chatID, userID: userID})
}

func (f *fakeClient) BanMember(_ context.Context, chatID, userID int64) error {
	return f.record(call{method: "BanMember", chatID: chatID, userID: userID})
}

func (f *fakeClient) UnbanMember(_ context.Context, chatID, userID int64) error {
	return f.record(call{method: "UnbanMember", chatID: chatID, userID: userID})
}

func (f *fakeClient) SetAdminTitle(_ context.Context, chatID, userID int64, title string) error {
	return f.record(call{method: "SetAdminTitle", chatID: chatID, userID: userID, text: title})
}

func (f *fakeClient) SetChatTitle(_ context.Context, chatID int64, title string) error {
	return f.record(call{method: "SetChatTitle", chatID: chatID, text: title})
}

func (f *fakeClient) SetChatDescription(_ context.Context, chatID int64, description string) error {
	return f.record(call{method: "SetChatDescription", chatID: chatID, text: description})
}

func (f *fakeClient) CreateInviteLink(_ context.Context, chatID int64, name string, _ int, _ time.Time) (*models.ChatInviteLink, error) {
	if err := f.record(call{method: "CreateInviteLink", chatID: chatID, text: name}); err != nil {
		return nil, err
	}
	return f.link, nil
}

func (f *fakeClient) GetChat(_ context.Context, chatID int64) (*models.ChatFullInfo, error) {
	if err := f.record(call{method: "GetChat", chatID: chatID}); err != nil {
		return nil, err
	}
	return f.chat, nil
}

func (f *fakeClient) GetChatMemberCount(_ context.Context, chatID int64) (int, error) {
	if err := f.record(call{method: "GetChatMemberCount", chatID: chatID}); err != nil {
		return 0, err
	}
	return 42, nil
}

func (f *fakeClient) GetChatAdministrators(_ context.Context, chatID int64) ([]models.ChatMember, error) {
	if err := f.record(call{method: "GetChatAdministrators", chatID: chatID}); err != nil {
		return nil, err
	}
	return f.admins, nil
}

func (f *fakeClient) GetChatMember(_ context.Context, chatID, userID int64) (*models.ChatMember, error) {
	if err := f.record(call{method: "GetChatMember", chatID: chatID, userID: userID}); err != nil {
		return nil, err
	}
	if f.member == nil {
		return &models.ChatMember{Type: models.ChatMemberTypeMember}, nil
	}
	return f.member, nil
}

func (f *fakeClient) SetWebhook(_ context.Context, url string, _ []string) error {
	return f.record(call{method: "SetWebhook", text: url})
}

func (f *fakeClient) DeleteWebhook(context.Context) error {
	return f.record(call{method: "DeleteWebhook"})
}

// fakeStore implements database.Store in memory. Only the behavior the
// engine depends on is modelled.
type fakeStore struct {
	mu       sync.Mutex
	botCfg   *database.BotConfig
	groups   map[int64]database.Group
	commands []database.Command
	logs     []database.ActivityLog
	usage    map[int64]int64

	groupCalls   int
	commandCalls int
	failGroups   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups: map[int64]database.Group{},
		usage:  map[int64]int64{},
	}
}

func (s *fakeStore) addGroup(g database.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.GroupID] = g
}

func (s *fakeStore) loggedActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, entry := range s.logs {
		out = append(out, entry.Action)
	}
	return out
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) GetBotConfig(context.Context) (*database.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.botCfg == nil {
		return nil, database.ErrNotFound
	}
	cfg := *s.botCfg
	return &cfg, nil
}

func (s *fakeStore) UpsertBotConfig(_ context.Context, token string, botID int64, botUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.botCfg = &database.BotConfig{ID: 1, Token: token, BotID: botID, BotUsername: botUsername}
	return nil
}

func (s *fakeStore) GetGroup(_ context.Context, id int64) (*database.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.ID == id {
			out := g
			return &out, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) GetGroupByGroupID(_ context.Context, groupID int64) (*database.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupCalls++
	if s.failGroups != nil {
		return nil, s.failGroups
	}
	g, ok := s.groups[groupID]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := g
	return &out, nil
}

func (s *fakeStore) ListGroups(context.Context) ([]database.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Group
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

func (s *fakeStore) CreateGroup(_ context.Context, group *database.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group.ID = int64(len(s.groups) + 1)
	s.groups[group.GroupID] = *group
	return nil
}

func (s *fakeStore) UpdateGroup(_ context.Context, id int64, patch database.GroupPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, g := range s.groups {
		if g.ID != id {
			continue
		}
		if patch.Title != nil {
			g.Title.String = *patch.Title
			g.Title.Valid = true
		}
		if patch.MemberCount != nil {
			g.MemberCount.Int64 = *patch.MemberCount
			g.MemberCount.Valid = true
		}
		if patch.IsActive != nil {
			g.IsActive = *patch.IsActive
		}
		s.groups[key] = g
		return nil
	}
	return database.ErrNotFound
}

func (s *fakeStore) DeleteGroup(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, g := range s.groups {
		if g.ID == id {
			delete(s.groups, key)
			return nil
		}
	}
	return database.ErrNotFound
}

func (s *fakeStore) DeleteAllGroups(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.groups))
	s.groups = map[int64]database.Group{}
	return n, nil
}

func (s *fakeStore) GetCommand(_ context.Context, id int64) (*database.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range s.commands {
		if cmd.ID == id {
			out := cmd
			return &out, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ListCommands(context.Context) ([]database.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandCalls++
	out := make([]database.Command, len(s.commands))
	copy(out, s.commands)
	return out, nil
}

func (s *fakeStore) CreateCommand(_ context.Context, cmd *database.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd.ID = int64(len(s.commands) + 1)
	s.commands = append(s.commands, *cmd)
	return nil
}

func (s *fakeStore) UpdateCommand(_ context.Context, id int64, patch database.CommandPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.commands {
		if s.commands[i].ID != id {
			continue
		}
		if patch.Name != nil {
			s.commands[i].Name = *patch.Name
		}
		if patch.TriggerType != nil {
			s.commands[i].TriggerType = *patch.TriggerType
		}
		if patch.ActionType != nil {
			s.commands[i].ActionType = *patch.ActionType
		}
		if patch.Description != nil {
			s.commands[i].Description = *patch.Description
		}
		if patch.IsEnabled != nil {
			s.commands[i].IsEnabled = *patch.IsEnabled
		}
		return nil
	}
	return database.ErrNotFound
}

func (s *fakeStore) DeleteCommand(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.commands {
		if s.commands[i].ID == id {
			s.commands = append(s.commands[:i], s.commands[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (s *fakeStore) IncrementCommandUsage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[id]++
	return nil
}

func (s *fakeStore) CreateLog(_ context.Context, entry *database.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *fakeStore) ListLogs(_ context.Context, groupID *int64, _ int) ([]database.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.ActivityLog
	for _, entry := range s.logs {
		if groupID != nil && (!entry.GroupID.Valid || entry.GroupID.Int64 != *groupID) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *fakeStore) ListSystemLogs(_ context.Context, _ int) ([]database.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.ActivityLog
	for _, entry := range s.logs {
		if !entry.GroupID.Valid {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteLogsOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []database.ActivityLog
	var deleted int64
	for _, entry := range s.logs {
		if entry.GroupID.Valid && entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	s.logs = kept
	return deleted, nil
}

func (s *fakeStore) DeleteGroupLogs(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []database.ActivityLog
	var deleted int64
	for _, entry := range s.logs {
		if entry.GroupID.Valid {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	s.logs = kept
	return deleted, nil
}

// drainAudit empties the audit queue into readable entries.
func drainAudit(w *AuditWriter) []database.ActivityLog {
	var out []database.ActivityLog
	for {
		select {
		case entry := <-w.entries:
			out = append(out, entry)
		default:
			return out
		}
	}
}

func errFor(method string) error {
	return fmt.Errorf("%s unavailable", method)
}
