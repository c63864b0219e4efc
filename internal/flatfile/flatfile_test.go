package flatfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/credential"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/storage"
)

func testBackend(t *testing.T, opts ...storage.Option) (*storage.Engine, *Backend) {
	t.Helper()
	e, err := storage.NewEngine(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	b, err := New(e, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, b
}

func newAccount(t *testing.T, username, password, bio string) models.Account {
	t.Helper()
	digest, salt, err := credential.New(password)
	if err != nil {
		t.Fatalf("credential.New: %v", err)
	}
	return models.Account{Username: username, Bio: bio, PasswordHash: digest, Salt: salt}
}

func readFile(t *testing.T, e *storage.Engine, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.Root(), rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func writeFile(t *testing.T, e *storage.Engine, rel, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.Root(), rel), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestNewCreatesFiles(t *testing.T) {
	e, _ := testBackend(t)
	for _, f := range append(DataFiles, SessionFile) {
		if _, err := os.Stat(filepath.Join(e.Root(), f)); err != nil {
			t.Errorf("%s not created: %v", f, err)
		}
	}
}

func TestAccountSaveFindVerify(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	accs := b.Accounts()

	if err := accs.Save(ctx, newAccount(t, "alice", "pw1", "hi")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := accs.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.Bio != "hi" {
		t.Errorf("bio = %q, want hi", got.Bio)
	}
	if strings.Contains(readFile(t, e, CredentialsFile), "pw1") {
		t.Error("plaintext password written to disk")
	}

	ok, err := accs.VerifyCredentials(ctx, "alice", "pw1")
	if err != nil || !ok {
		t.Errorf("VerifyCredentials(pw1) = %v, %v", ok, err)
	}
	ok, _ = accs.VerifyCredentials(ctx, "alice", "nope")
	if ok {
		t.Error("wrong password accepted")
	}
	ok, err = accs.VerifyCredentials(ctx, "ghost", "pw1")
	if err != nil || ok {
		t.Errorf("unknown user = %v, %v, want false, nil", ok, err)
	}
}

func TestAccountSaveDuplicate(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	if err := b.Accounts().Save(ctx, newAccount(t, "alice", "pw", "")); err != nil {
		t.Fatal(err)
	}
	err := b.Accounts().Save(ctx, newAccount(t, "alice", "other", ""))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if n := strings.Count(readFile(t, e, CredentialsFile), "\n"); n != 1 {
		t.Errorf("lines = %d, want 1", n)
	}
}

func TestAccountLegacyMigration(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	writeFile(t, e, CredentialsFile, "bob:secret:my: bio\n")

	got, err := b.Accounts().FindByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.Bio != "my: bio" {
		t.Errorf("bio = %q", got.Bio)
	}

	content := strings.TrimSpace(readFile(t, e, CredentialsFile))
	if strings.Contains(content, "secret") {
		t.Fatalf("legacy password still on disk: %q", content)
	}
	rec, err := codec.DecodeAccount(content)
	if err != nil {
		t.Fatalf("decode migrated line: %v", err)
	}
	h, ok := rec.(codec.HashedCredential)
	if !ok {
		t.Fatalf("migrated line decoded as %T", rec)
	}
	if !h.Verify("secret") {
		t.Error("migrated hash does not verify the old password")
	}

	// A second lookup must not rehash with a new salt.
	if _, err := b.Accounts().FindByUsername(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if again := strings.TrimSpace(readFile(t, e, CredentialsFile)); again != content {
		t.Errorf("line changed on second lookup:\n%q\n%q", content, again)
	}
}

func TestMigrateCredentials(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	current := codec.EncodeAccount(newAccount(t, "carol", "pw", "c"))
	writeFile(t, e, CredentialsFile, "alice:a:x\n"+current+"\nbob:b:y\n")

	n, err := b.Accounts().MigrateCredentials(ctx)
	if err != nil {
		t.Fatalf("MigrateCredentials: %v", err)
	}
	if n != 2 {
		t.Errorf("migrated = %d, want 2", n)
	}
	n, _ = b.Accounts().MigrateCredentials(ctx)
	if n != 0 {
		t.Errorf("second run migrated %d", n)
	}
	for user, pw := range map[string]string{"alice": "a", "bob": "b", "carol": "pw"} {
		ok, err := b.Accounts().VerifyCredentials(ctx, user, pw)
		if err != nil || !ok {
			t.Errorf("VerifyCredentials(%s) = %v, %v", user, ok, err)
		}
	}
	lines := strings.Split(strings.TrimSpace(readFile(t, e, CredentialsFile)), "\n")
	if len(lines) != 3 || codec.AccountKey(lines[1]) != "carol" {
		t.Errorf("order not preserved: %v", lines)
	}
}

func TestAccountUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	accs := b.Accounts()
	alice := newAccount(t, "alice", "pw", "old")
	if err := accs.Save(ctx, alice); err != nil {
		t.Fatal(err)
	}
	if err := accs.Save(ctx, newAccount(t, "bob", "pw", "")); err != nil {
		t.Fatal(err)
	}
	sess, err := NewSession(e)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Login(alice); err != nil {
		t.Fatal(err)
	}

	alice.Bio = "new"
	if err := accs.Update(ctx, alice); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := accs.FindByUsername(ctx, "alice")
	if got.Bio != "new" {
		t.Errorf("bio = %q, want new", got.Bio)
	}
	if !strings.HasSuffix(strings.TrimSpace(readFile(t, e, SessionFile)), ":new") {
		t.Errorf("session not refreshed: %q", readFile(t, e, SessionFile))
	}

	ghost := newAccount(t, "ghost", "pw", "")
	if err := accs.Update(ctx, ghost); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update(ghost) = %v, want ErrNotFound", err)
	}

	if err := accs.Delete(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := accs.FindByUsername(ctx, "alice"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	all, _ := accs.All(ctx)
	if len(all) != 1 || all[0].Username != "bob" {
		t.Errorf("All = %+v", all)
	}
}

func TestAccountMalformedLineSkipped(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	good := codec.EncodeAccount(newAccount(t, "alice", "pw", ""))
	writeFile(t, e, CredentialsFile, "garbage\n"+good+"\nbroken:\n")

	all, err := b.Accounts().All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].Username != "alice" {
		t.Errorf("All = %+v", all)
	}
}

func TestFollowScenario(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	f := b.Follows()

	for _, edge := range [][2]string{{"alice", "bob"}, {"alice", "carol"}, {"alice", "bob"}} {
		if err := f.Follow(ctx, edge[0], edge[1]); err != nil {
			t.Fatalf("Follow %v: %v", edge, err)
		}
	}
	if got := readFile(t, e, FollowingFile); got != "alice: bob; carol\n" {
		t.Errorf("file = %q", got)
	}

	following, _ := f.Following(ctx, "alice")
	if strings.Join(following, ",") != "bob,carol" {
		t.Errorf("Following = %v", following)
	}
	followers, _ := f.Followers(ctx, "bob")
	if len(followers) != 1 || followers[0] != "alice" {
		t.Errorf("Followers(bob) = %v", followers)
	}

	if err := f.Unfollow(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := f.Unfollow(ctx, "alice", "carol"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, e, FollowingFile); got != "alice: \n" {
		t.Errorf("file after unfollow = %q", got)
	}
	following, _ = f.Following(ctx, "alice")
	if len(following) != 0 {
		t.Errorf("Following after unfollow = %v", following)
	}
	ok, _ := f.IsFollowing(ctx, "alice", "bob")
	if ok {
		t.Error("still following bob")
	}
}

func TestFollowRemoveUser(t *testing.T) {
	ctx := context.Background()
	_, b := testBackend(t)
	f := b.Follows()
	for _, edge := range [][2]string{{"alice", "bob"}, {"bob", "alice"}, {"carol", "bob"}, {"carol", "alice"}} {
		if err := f.Follow(ctx, edge[0], edge[1]); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.RemoveUser(ctx, "bob"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	edges, _ := f.Edges(ctx)
	want := []models.FollowEdge{{Follower: "carol", Followed: "alice"}}
	if fmt.Sprint(edges) != fmt.Sprint(want) {
		t.Errorf("Edges = %v, want %v", edges, want)
	}
}

func TestNotificationsNewestFirstAndDelete(t *testing.T) {
	ctx := context.Background()
	_, b := testBackend(t)
	ns := b.Notifications()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	for i, n := range []models.Notification{
		{Receiver: "bob", Sender: "alice", ImageID: "bob_1", Timestamp: base, Type: models.NotificationLike},
		{Receiver: "bob", Sender: "carol", Timestamp: base.Add(time.Hour), Type: models.NotificationFollow},
		{Receiver: "carol", Sender: "bob", ImageID: "carol_1", Timestamp: base, Type: models.NotificationComment},
		{Receiver: "bob", Sender: "bob", ImageID: "bob_1", Timestamp: base, Type: models.NotificationLike},
	} {
		if err := ns.Save(ctx, n); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	got, err := ns.ForReceiver(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("ForReceiver(bob) = %d notifications, want 2", len(got))
	}
	if got[0].Sender != "carol" || got[1].Sender != "alice" {
		t.Errorf("order = %s, %s", got[0].Sender, got[1].Sender)
	}

	if err := ns.Delete(ctx, got[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := ns.Delete(ctx, got[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if err := ns.DeleteInvolving(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	all, _ := ns.All(ctx)
	if len(all) != 1 || all[0].Receiver != "carol" {
		t.Errorf("All = %+v", all)
	}
}

func TestPictureScenario(t *testing.T) {
	ctx := context.Background()
	e, b := testBackend(t)
	pics := b.Pictures()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	for _, id := range []string{"alice_1", "alice_2"} {
		if err := pics.Save(ctx, models.Picture{ImageID: id, Owner: "alice", Caption: "x", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}
	id, err := pics.NextImageID(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if id != "alice_3" {
		t.Errorf("NextImageID = %q, want alice_3", id)
	}
	if id, _ := pics.NextImageID(ctx, "bob"); id != "bob_1" {
		t.Errorf("NextImageID(bob) = %q, want bob_1", id)
	}

	path, err := pics.PutImage(ctx, "alice_3", strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	if path != "img/uploaded/alice_3.png" {
		t.Errorf("path = %q", path)
	}
	// An orphaned image file still reserves its sequence number.
	if id, _ := pics.NextImageID(ctx, "alice"); id != "alice_4" {
		t.Errorf("NextImageID with orphan = %q, want alice_4", id)
	}
	if _, err := pics.PutImage(ctx, "alice_3", strings.NewReader("other")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("PutImage over existing = %v", err)
	}

	p, err := pics.Like(ctx, "alice_1")
	if err != nil {
		t.Fatal(err)
	}
	if p.LikesCount != 1 {
		t.Errorf("likes = %d", p.LikesCount)
	}
	if _, err := pics.Like(ctx, "ghost_1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Like(ghost) = %v", err)
	}
	if err := pics.Save(ctx, models.Picture{ImageID: "alice_1", Owner: "alice", Timestamp: ts}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate Save = %v", err)
	}

	if err := pics.Save(ctx, models.Picture{ImageID: "alice_3", Owner: "alice", Timestamp: ts}); err != nil {
		t.Fatal(err)
	}
	if err := pics.Delete(ctx, "alice_3"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(e.Root(), path)); !os.IsNotExist(err) {
		t.Errorf("image file not removed: %v", err)
	}
	if _, err := pics.FindByID(ctx, "alice_3"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("FindByID after delete = %v", err)
	}
}

func TestPicturesFromFollowed(t *testing.T) {
	ctx := context.Background()
	_, b := testBackend(t)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	for _, p := range []models.Picture{
		{ImageID: "bob_1", Owner: "bob", Timestamp: ts},
		{ImageID: "carol_1", Owner: "carol", Timestamp: ts},
		{ImageID: "dave_1", Owner: "dave", Timestamp: ts},
	} {
		if err := b.Pictures().Save(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	_ = b.Follows().Follow(ctx, "alice", "carol")
	_ = b.Follows().Follow(ctx, "alice", "bob")

	got, err := b.Pictures().FromFollowed(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ImageID != "carol_1" || got[1].ImageID != "bob_1" {
		t.Errorf("FromFollowed = %+v", got)
	}
}

func TestConcurrentLikesSerialized(t *testing.T) {
	ctx := context.Background()
	_, b := testBackend(t, storage.WithSerializedWrites())
	if err := b.Pictures().Save(ctx, models.Picture{ImageID: "alice_1", Owner: "alice", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Pictures().Like(ctx, "alice_1"); err != nil {
				t.Errorf("Like: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := b.Pictures().FindByID(ctx, "alice_1")
	if err != nil {
		t.Fatal(err)
	}
	if p.LikesCount != n {
		t.Errorf("likes = %d, want %d", p.LikesCount, n)
	}
}

func TestSession(t *testing.T) {
	e, err := storage.NewEngine(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(e)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Current(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Current on empty = %v", err)
	}
	if err := s.Login(newAccount(t, "alice", "pw", "bio")); err != nil {
		t.Fatal(err)
	}
	if u, err := s.Current(); err != nil || u != "alice" {
		t.Errorf("Current = %q, %v", u, err)
	}
	if err := s.Logout(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Current(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Current after logout = %v", err)
	}
}
