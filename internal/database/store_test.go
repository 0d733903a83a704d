package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func TestBotConfigRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetBotConfig(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty table should yield ErrNotFound, got %v", err)
	}

	if err := store.UpsertBotConfig(ctx, "123:abc", 99, "warden_bot"); err != nil {
		t.Fatalf("UpsertBotConfig failed: %v", err)
	}
	cfg, err := store.GetBotConfig(ctx)
	if err != nil {
		t.Fatalf("GetBotConfig failed: %v", err)
	}
	if cfg.Token != "123:abc" || cfg.BotID != 99 || cfg.BotUsername != "warden_bot" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	// The config is a singleton; a second upsert replaces it.
	if err := store.UpsertBotConfig(ctx, "456:def", 100, "other_bot"); err != nil {
		t.Fatalf("second UpsertBotConfig failed: %v", err)
	}
	cfg, err = store.GetBotConfig(ctx)
	if err != nil {
		t.Fatalf("GetBotConfig failed: %v", err)
	}
	if cfg.Token != "456:def" || cfg.BotUsername != "other_bot" {
		t.Fatalf("upsert did not replace the singleton: %+v", cfg)
	}
}

func TestGroupCRUD(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	group := &Group{
		GroupID:  -100200,
		Title:    sql.NullString{String: "Study Hall", Valid: true},
		IsActive: true,
	}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if group.ID == 0 {
		t.Fatal("CreateGroup did not backfill the id")
	}

	byChat, err := store.GetGroupByGroupID(ctx, -100200)
	if err != nil {
		t.Fatalf("GetGroupByGroupID failed: %v", err)
	}
	if byChat.Title.String != "Study Hall" || !byChat.IsActive {
		t.Fatalf("unexpected group %+v", byChat)
	}

	inactive := false
	count := int64(25)
	if err := store.UpdateGroup(ctx, group.ID, GroupPatch{IsActive: &inactive, MemberCount: &count}); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	updated, err := store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if updated.IsActive || updated.MemberCount.Int64 != 25 {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Title.String != "Study Hall" {
		t.Fatalf("patch clobbered an untouched field: %+v", updated)
	}

	if err := store.DeleteGroup(ctx, group.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, err := store.GetGroup(ctx, group.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted group still readable: %v", err)
	}
	if err := store.DeleteGroup(ctx, group.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete = %v, want ErrNotFound", err)
	}
}

func TestGroupChatIDIsUnique(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateGroup(ctx, &Group{GroupID: -1, IsActive: true}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if err := store.CreateGroup(ctx, &Group{GroupID: -1, IsActive: true}); err == nil {
		t.Fatal("duplicate chat id must be rejected")
	}
}

func TestDeleteAllGroups(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{-1, -2, -3} {
		if err := store.CreateGroup(ctx, &Group{GroupID: id, IsActive: true}); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
	}

	removed, err := store.DeleteAllGroups(ctx)
	if err != nil {
		t.Fatalf("DeleteAllGroups failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed %d groups, want 3", removed)
	}
	groups, err := store.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("whitelist not empty after clear: %d entries", len(groups))
	}
}

func TestListCommandsPreservesCreationOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"pin this", "pin", "rename group"}
	for i, name := range names {
		cmd := &Command{
			Name:        name,
			TriggerType: TriggerReply,
			ActionType:  ActionPinMessage,
			IsEnabled:   true,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if i == 2 {
			cmd.TriggerType = TriggerDirect
			cmd.ActionType = ActionSetGroupName
		}
		if i == 1 {
			cmd.ActionType = ActionUnpinMessage
		}
		if err := store.CreateCommand(ctx, cmd); err != nil {
			t.Fatalf("CreateCommand(%q) failed: %v", name, err)
		}
	}

	commands, err := store.ListCommands(ctx)
	if err != nil {
		t.Fatalf("ListCommands failed: %v", err)
	}
	if len(commands) != 3 {
		t.Fatalf("listed %d commands, want 3", len(commands))
	}
	for i, name := range names {
		if commands[i].Name != name {
			t.Fatalf("position %d = %q, want %q", i, commands[i].Name, name)
		}
	}
}

func TestCreateCommandValidatesEnums(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	bad := &Command{Name: "x", TriggerType: "sideways", ActionType: ActionPinMessage}
	if err := store.CreateCommand(ctx, bad); err == nil {
		t.Fatal("invalid trigger type must be rejected")
	}
	bad = &Command{Name: "x", TriggerType: TriggerDirect, ActionType: "explode"}
	if err := store.CreateCommand(ctx, bad); err == nil {
		t.Fatal("invalid action type must be rejected")
	}
}

func TestIncrementCommandUsage(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	cmd := &Command{Name: "pin", TriggerType: TriggerReply, ActionType: ActionPinMessage, IsEnabled: true}
	if err := store.CreateCommand(ctx, cmd); err != nil {
		t.Fatalf("CreateCommand failed: %v", err)
	}

	for range 3 {
		if err := store.IncrementCommandUsage(ctx, cmd.ID); err != nil {
			t.Fatalf("IncrementCommandUsage failed: %v", err)
		}
	}

	loaded, err := store.GetCommand(ctx, cmd.ID)
	if err != nil {
		t.Fatalf("GetCommand failed: %v", err)
	}
	if loaded.UsageCount != 3 {
		t.Fatalf("usage count = %d, want 3", loaded.UsageCount)
	}
}

func TestCreateLogValidatesStatus(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	entry := &ActivityLog{Action: "pin", Status: "maybe"}
	if err := store.CreateLog(context.Background(), entry); err == nil {
		t.Fatal("invalid status must be rejected")
	}
}

func TestLogScopesAndRetention(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -40)
	entries := []*ActivityLog{
		{Action: "pin", UserName: "@admin", GroupID: sql.NullInt64{Int64: -1, Valid: true}, Status: StatusSuccess, CreatedAt: old},
		{Action: "ban", UserName: "@admin", GroupID: sql.NullInt64{Int64: -1, Valid: true}, Status: StatusSuccess},
		{Action: "kick", UserName: "@admin", GroupID: sql.NullInt64{Int64: -2, Valid: true}, Status: StatusError},
		{Action: "bot_start", UserName: "system", Status: StatusSuccess, CreatedAt: old},
	}
	for _, entry := range entries {
		if err := store.CreateLog(ctx, entry); err != nil {
			t.Fatalf("CreateLog(%q) failed: %v", entry.Action, err)
		}
	}

	all, err := store.ListLogs(ctx, nil, 0)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("listed %d entries, want 4", len(all))
	}

	groupID := int64(-1)
	scoped, err := store.ListLogs(ctx, &groupID, 0)
	if err != nil {
		t.Fatalf("scoped ListLogs failed: %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("group -1 has %d entries, want 2", len(scoped))
	}

	system, err := store.ListSystemLogs(ctx, 0)
	if err != nil {
		t.Fatalf("ListSystemLogs failed: %v", err)
	}
	if len(system) != 1 || system[0].Action != "bot_start" {
		t.Fatalf("unexpected system entries %+v", system)
	}

	// The sweep removes only old group-scoped entries. The equally old
	// system entry is exempt.
	deleted, err := store.DeleteLogsOlderThan(ctx, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteLogsOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("sweep deleted %d entries, want 1", deleted)
	}
	system, err = store.ListSystemLogs(ctx, 0)
	if err != nil {
		t.Fatalf("ListSystemLogs failed: %v", err)
	}
	if len(system) != 1 {
		t.Fatal("retention sweep touched a system entry")
	}

	// Clearing group logs wholesale also leaves system entries alone.
	purged, err := store.DeleteGroupLogs(ctx)
	if err != nil {
		t.Fatalf("DeleteGroupLogs failed: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged %d entries, want 2", purged)
	}
	remaining, err := store.ListLogs(ctx, nil, 0)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Action != "bot_start" {
		t.Fatalf("unexpected survivors %+v", remaining)
	}
}

func TestListLogsNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, action := range []string{"first", "second", "third"} {
		entry := &ActivityLog{
			Action:    action,
			UserName:  "@admin",
			GroupID:   sql.NullInt64{Int64: -1, Valid: true},
			Status:    StatusSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateLog(ctx, entry); err != nil {
			t.Fatalf("CreateLog failed: %v", err)
		}
	}

	entries, err := store.ListLogs(ctx, nil, 2)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("limit ignored, got %d entries", len(entries))
	}
	if entries[0].Action != "third" || entries[1].Action != "second" {
		t.Fatalf("entries not newest first: %q, %q", entries[0].Action, entries[1].Action)
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{0, 50},
		{-5, 50},
		{100, 100},
		{9999, 500},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
