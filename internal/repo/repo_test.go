package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/geo"
)

func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, lat, lon *float64) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:        name + "@x.com",
		Username:     name,
		PasswordHash: "h",
		Roles:        []string{domain.RoleUser},
		Latitude:     lat,
		Longitude:    lon,
		UserToken:    "tok-" + name,
		CreatedAt:    time.Now().UTC(),
	}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return u
}

func fp(v float64) *float64 { return &v }

func TestCreateUser_DuplicateAndLookups(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)

	dup := &domain.User{Email: "a@x.com", Username: "x", PasswordHash: "h", Roles: []string{domain.RoleUser}, UserToken: "other"}
	if err := CreateUser(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("CreateUser dup = %v; want ErrDuplicate", err)
	}

	got, err := GetUserByEmail(ctx, db, "a@x.com")
	if err != nil || got.ID != a.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}
	if got, err := GetUserByToken(ctx, db, "tok-a"); err != nil || got.ID != a.ID {
		t.Fatalf("GetUserByToken = %+v, %v", got, err)
	}
	if _, err := GetUser(ctx, db, 999); !IsNotFound(err) {
		t.Fatalf("GetUser(missing) = %v; want not found", err)
	}

	b := seedUser(t, db, "b", nil, nil)
	if taken, _ := EmailTaken(ctx, db, "a@x.com", b.ID); !taken {
		t.Fatalf("a@x.com should be taken for b")
	}
	if taken, _ := EmailTaken(ctx, db, "a@x.com", a.ID); taken {
		t.Fatalf("own e-mail must not count as taken")
	}
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)

	now := time.Now().UTC()
	if err := UpdateUser(ctx, db, a.ID, map[string]any{"online": true, "latitude": 1.5, "last_seen_at": now}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ := GetUser(ctx, db, a.ID)
	if !got.Online || got.Latitude == nil || *got.Latitude != 1.5 || got.LastSeenAt == nil {
		t.Fatalf("update not applied: %+v", got)
	}
	if err := UpdateUser(ctx, db, 999, map[string]any{"online": true}); !IsNotFound(err) {
		t.Fatalf("UpdateUser(missing) = %v", err)
	}
	if err := UpdateUser(ctx, db, b.ID, map[string]any{"email": "a@x.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("UpdateUser taken email = %v; want ErrDuplicate", err)
	}
	if err := UpdateUser(ctx, db, a.ID, nil); err != nil {
		t.Fatalf("empty update should be a no-op: %v", err)
	}
}

func TestListLocatedUsers_Box(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	seedUser(t, db, "near", fp(40.0), fp(-3.0))
	seedUser(t, db, "far", fp(41.0), fp(-3.0))
	seedUser(t, db, "nowhere", nil, nil)
	seedUser(t, db, "half", fp(40.0), nil)

	all, err := ListLocatedUsers(ctx, db, nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListLocatedUsers(nil) = %d users, err=%v; want 2", len(all), err)
	}

	box, ok := geo.BoundAround(geo.Point{Lat: 40.0, Lon: -3.0}, 5)
	if !ok {
		t.Fatalf("box unavailable")
	}
	inBox, err := ListLocatedUsers(ctx, db, &box)
	if err != nil || len(inBox) != 1 || inBox[0].Username != "near" {
		t.Fatalf("ListLocatedUsers(box) = %+v, err=%v", inBox, err)
	}
}

func TestGeneralChat_EnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)

	c1, err := EnsureGeneralChat(ctx, db)
	if err != nil {
		t.Fatalf("EnsureGeneralChat: %v", err)
	}
	c2, err := EnsureGeneralChat(ctx, db)
	if err != nil || c1.ID != c2.ID {
		t.Fatalf("second Ensure returned %+v, %v", c2, err)
	}
	if c1.Token != domain.GeneralChatToken || c1.Type != domain.ChatTypeGeneral || c1.Ephemeral {
		t.Fatalf("unexpected general chat: %+v", c1)
	}

	// The general chat survives losing every member.
	u := seedUser(t, db, "a", nil, nil)
	if created, err := EnsureMembership(ctx, db, c1.ID, u.ID, time.Now().UTC()); err != nil || !created {
		t.Fatalf("EnsureMembership = %v, %v", created, err)
	}
	if created, _ := EnsureMembership(ctx, db, c1.ID, u.ID, time.Now().UTC()); created {
		t.Fatalf("second EnsureMembership must not insert")
	}
	_ = RemoveMembership(ctx, db, c1.ID, u.ID)
	if gone, err := DeleteChatIfEmpty(ctx, db, c1.ID); err != nil || gone {
		t.Fatalf("general chat must not be deleted: gone=%v err=%v", gone, err)
	}
}

func TestPrivateChat_CreateFindDelete(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)
	c := seedUser(t, db, "c", nil, nil)
	now := time.Now().UTC()

	if _, err := FindPrivateChatBetween(ctx, db, a.ID, b.ID); !IsNotFound(err) {
		t.Fatalf("expected no chat yet, got %v", err)
	}

	chat, members, err := CreatePrivateChat(ctx, db, "priv-1", a.ID, b.ID, now)
	if err != nil || len(members) != 2 {
		t.Fatalf("CreatePrivateChat = %+v, %v", chat, err)
	}
	if !chat.Ephemeral || chat.Type != domain.ChatTypePrivate {
		t.Fatalf("private chat flags wrong: %+v", chat)
	}

	// Found from either side.
	for _, pair := range [][2]uint{{a.ID, b.ID}, {b.ID, a.ID}} {
		got, err := FindPrivateChatBetween(ctx, db, pair[0], pair[1])
		if err != nil || got.ID != chat.ID {
			t.Fatalf("FindPrivateChatBetween%v = %+v, %v", pair, got, err)
		}
	}
	if _, err := FindPrivateChatBetween(ctx, db, a.ID, c.ID); !IsNotFound(err) {
		t.Fatalf("a and c share no chat")
	}

	// Creator is the earliest member, ties broken by insertion order.
	first, err := EarliestMember(ctx, db, chat.ID)
	if err != nil || first.UserID != a.ID {
		t.Fatalf("EarliestMember = %+v, %v; want a", first, err)
	}

	members2, err := ListMembers(ctx, db, chat.ID)
	if err != nil || len(members2) != 2 || members2[0].Username != "a" {
		t.Fatalf("ListMembers = %+v, %v", members2, err)
	}

	if _, _, err := CreatePrivateChat(ctx, db, "priv-1", b.ID, c.ID, now); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("reused token = %v; want ErrDuplicate", err)
	}

	_, _ = CreateMessage(ctx, db, chat.ID, &a.ID, "hi", false, now)
	if err := DeleteChat(ctx, db, chat.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if n, _ := CountMessages(ctx, db, chat.ID); n != 0 {
		t.Fatalf("orphan messages: %d", n)
	}
	if n, _ := CountMembers(ctx, db, chat.ID); n != 0 {
		t.Fatalf("orphan memberships: %d", n)
	}
	if err := DeleteChat(ctx, db, chat.ID); !IsNotFound(err) {
		t.Fatalf("second DeleteChat = %v; want not found", err)
	}
}

func TestPrivateChat_OnePerPair(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)
	now := time.Now().UTC()

	if PairKey(a.ID, b.ID) != PairKey(b.ID, a.ID) {
		t.Fatalf("pair key depends on order: %q vs %q", PairKey(a.ID, b.ID), PairKey(b.ID, a.ID))
	}

	first, _, err := CreatePrivateChat(ctx, db, "ab-1", a.ID, b.ID, now)
	if err != nil {
		t.Fatalf("CreatePrivateChat: %v", err)
	}
	if _, _, err := CreatePrivateChat(ctx, db, "ab-2", b.ID, a.ID, now); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second chat for pair = %v; want ErrDuplicate", err)
	}

	if err := ReleasePairKey(ctx, db, first.ID); err != nil {
		t.Fatalf("ReleasePairKey: %v", err)
	}
	got, err := GetChatByID(ctx, db, first.ID)
	if err != nil || got.PairKey != nil {
		t.Fatalf("released chat = %+v, %v", got, err)
	}
	if _, _, err := CreatePrivateChat(ctx, db, "ab-2", b.ID, a.ID, now); err != nil {
		t.Fatalf("create after release: %v", err)
	}
}

func TestDeleteChatIfEmpty(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)
	chat, _, _ := CreatePrivateChat(ctx, db, "priv", a.ID, b.ID, time.Now().UTC())

	_ = RemoveMembership(ctx, db, chat.ID, a.ID)
	if gone, _ := DeleteChatIfEmpty(ctx, db, chat.ID); gone {
		t.Fatalf("chat with a member left must stay")
	}
	_ = RemoveMembership(ctx, db, chat.ID, b.ID)
	if gone, err := DeleteChatIfEmpty(ctx, db, chat.ID); err != nil || !gone {
		t.Fatalf("empty ephemeral chat should go: gone=%v err=%v", gone, err)
	}
	if gone, err := DeleteChatIfEmpty(ctx, db, chat.ID); err != nil || gone {
		t.Fatalf("missing chat is a no-op: gone=%v err=%v", gone, err)
	}
	if err := RemoveMembership(ctx, db, chat.ID, b.ID); !IsNotFound(err) {
		t.Fatalf("RemoveMembership(missing) = %v", err)
	}
}

func TestMemberships_AddAndFeed(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)
	c := seedUser(t, db, "c", nil, nil)
	base := time.Now().UTC().Add(-time.Hour)
	chat, _, _ := CreatePrivateChat(ctx, db, "priv", a.ID, b.ID, base)

	if _, err := AddMembership(ctx, db, chat.ID, a.ID, base); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("AddMembership dup = %v", err)
	}
	if _, err := AddMembership(ctx, db, chat.ID, c.ID, base.Add(50*time.Minute)); err != nil {
		t.Fatalf("AddMembership: %v", err)
	}
	if ok, _ := IsMember(ctx, db, chat.ID, c.ID); !ok {
		t.Fatalf("c should be a member")
	}
	if _, err := GetMembership(ctx, db, chat.ID, 999); !IsNotFound(err) {
		t.Fatalf("GetMembership(missing) = %v", err)
	}

	feed, err := ListMembershipsSince(ctx, db, c.ID, base.Add(30*time.Minute))
	if err != nil || len(feed) != 1 || feed[0].ChatToken != "priv" {
		t.Fatalf("ListMembershipsSince(c) = %+v, %v", feed, err)
	}
	if feed, _ := ListMembershipsSince(ctx, db, a.ID, base.Add(30*time.Minute)); len(feed) != 0 {
		t.Fatalf("a joined before since: %+v", feed)
	}
}

func TestMessages_SinceAndLimit(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)
	chat, _, _ := CreatePrivateChat(ctx, db, "priv", a.ID, b.ID, time.Now().UTC())

	base := time.Now().UTC()
	var ids []uint
	for i := 0; i < 5; i++ {
		m, err := CreateMessage(ctx, db, chat.ID, &a.ID, fmt.Sprintf("m%d", i), false, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		ids = append(ids, m.ID)
	}
	sys, _ := CreateMessage(ctx, db, chat.ID, nil, "system", true, base.Add(10*time.Second))

	all, err := ListMessagesSince(ctx, db, chat.ID, 0, 100)
	if err != nil || len(all) != 6 {
		t.Fatalf("ListMessagesSince(0) = %d rows, %v", len(all), err)
	}
	if all[0].Body != "m0" || all[0].Username == nil || *all[0].Username != "a" {
		t.Fatalf("first row unexpected: %+v", all[0])
	}
	if last := all[5]; last.ID != sys.ID || last.Username != nil || !last.System {
		t.Fatalf("system row unexpected: %+v", last)
	}

	since, _ := ListMessagesSince(ctx, db, chat.ID, ids[2], 2)
	if len(since) != 2 || since[0].ID != ids[3] || since[1].ID != ids[4] {
		t.Fatalf("since/limit window wrong: %+v", since)
	}
}

func TestBlocks(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)
	c := seedUser(t, db, "c", nil, nil)
	now := time.Now().UTC()

	blk, err := CreateBlock(ctx, db, a.ID, b.ID, now)
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	if _, err := CreateBlock(ctx, db, a.ID, b.ID, now); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate block = %v", err)
	}
	_, _ = CreateBlock(ctx, db, a.ID, c.ID, now.Add(time.Second))

	list, err := ListBlocked(ctx, db, a.ID)
	if err != nil || len(list) != 2 || list[0].Username != "c" || list[1].BlockID != blk.ID {
		t.Fatalf("ListBlocked = %+v, %v", list, err)
	}

	found, err := FindBlock(ctx, db, a.ID, b.ID)
	if err != nil || found.ID != blk.ID {
		t.Fatalf("FindBlock = %+v, %v", found, err)
	}
	if _, err := FindBlock(ctx, db, b.ID, a.ID); !IsNotFound(err) {
		t.Fatalf("blocks are directional")
	}
	if err := DeleteBlock(ctx, db, blk.ID); err != nil {
		t.Fatalf("DeleteBlock: %v", err)
	}
	if err := DeleteBlock(ctx, db, blk.ID); !IsNotFound(err) {
		t.Fatalf("second DeleteBlock = %v", err)
	}
}

func TestListOnlineSince(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	me := seedUser(t, db, "me", nil, nil)
	fresh := seedUser(t, db, "fresh", nil, nil)
	stale := seedUser(t, db, "stale", nil, nil)
	offline := seedUser(t, db, "offline", nil, nil)
	now := time.Now().UTC()

	_ = UpdateUser(ctx, db, me.ID, map[string]any{"online": true, "last_seen_at": now})
	_ = UpdateUser(ctx, db, fresh.ID, map[string]any{"online": true, "last_seen_at": now.Add(-time.Minute)})
	_ = UpdateUser(ctx, db, stale.ID, map[string]any{"online": true, "last_seen_at": now.Add(-10 * time.Minute)})
	_ = UpdateUser(ctx, db, offline.ID, map[string]any{"online": false, "last_seen_at": now})

	got, err := ListOnlineSince(ctx, db, me.ID, now.Add(-5*time.Minute), 100)
	if err != nil || len(got) != 1 || got[0].ID != fresh.ID {
		t.Fatalf("ListOnlineSince = %+v, %v", got, err)
	}
}

func TestDeleteUser_Cascade(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	a := seedUser(t, db, "a", nil, nil)
	b := seedUser(t, db, "b", nil, nil)
	c := seedUser(t, db, "c", nil, nil)
	now := time.Now().UTC()

	general, _ := EnsureGeneralChat(ctx, db)
	_, _ = EnsureMembership(ctx, db, general.ID, a.ID, now)
	onlyAB, _, _ := CreatePrivateChat(ctx, db, "ab", a.ID, b.ID, now)
	withC, _, _ := CreatePrivateChat(ctx, db, "ac", a.ID, c.ID, now)
	_, _ = AddMembership(ctx, db, withC.ID, b.ID, now)
	msg, _ := CreateMessage(ctx, db, general.ID, &a.ID, "hello", false, now)
	_, _ = CreateBlock(ctx, db, a.ID, b.ID, now)
	_, _ = CreateBlock(ctx, db, c.ID, a.ID, now)

	// b leaves "ab" first so that deleting a empties it.
	_ = RemoveMembership(ctx, db, onlyAB.ID, b.ID)

	var removed []uint
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = DeleteUser(ctx, tx, a.ID)
		return err
	})
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if len(removed) != 1 || removed[0] != onlyAB.ID {
		t.Fatalf("removed chats = %v; want [%d]", removed, onlyAB.ID)
	}
	if _, err := GetUser(ctx, db, a.ID); !IsNotFound(err) {
		t.Fatalf("user still present")
	}
	if _, err := GetChatByID(ctx, db, withC.ID); err != nil {
		t.Fatalf("chat with remaining members must survive: %v", err)
	}
	if _, err := GetChatByID(ctx, db, general.ID); err != nil {
		t.Fatalf("general chat must survive: %v", err)
	}
	var n int64
	db.Model(&domain.Block{}).Count(&n)
	if n != 0 {
		t.Fatalf("blocks involving the user must be gone, got %d", n)
	}
	rows, _ := ListMessagesSince(ctx, db, general.ID, 0, 10)
	if len(rows) != 1 || rows[0].ID != msg.ID || rows[0].UserID != nil {
		t.Fatalf("message authorship should be nulled: %+v", rows)
	}

	if _, err := DeleteUser(ctx, db, a.ID); !IsNotFound(err) {
		t.Fatalf("deleting twice = %v; want not found", err)
	}
}
