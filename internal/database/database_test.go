package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"feedkeeper/internal/domain"
)

func testDB(t *testing.T) *Database {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), log)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test DB: %v", err)
		}
	})

	return db
}

func testFeed(userID int64, url, slug string) *domain.Feed {
	return &domain.Feed{
		UserID: userID,
		URL:    url,
		Title:  "Test Feed",
		Slug:   slug,
		Kind:   domain.KindRSS,
	}
}

func TestCreateFeedAssignsID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	feed := testFeed(1, "https://example.com/feed", "test-feed")
	if err := db.CreateFeed(ctx, feed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if feed.ID == 0 {
		t.Fatal("expected assigned feed ID")
	}
}

func TestFeedByURLExcludesDeleted(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	feed := testFeed(1, "https://example.com/feed", "test-feed")
	if err := db.CreateFeed(ctx, feed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.FeedByURL(ctx, 1, "https://example.com/feed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != feed.ID {
		t.Fatalf("expected feed found, got %+v", got)
	}

	if err = db.SoftDeleteFeed(ctx, feed.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err = db.FeedByURL(ctx, 1, "https://example.com/feed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected deleted feed excluded, got %+v", got)
	}
}

func TestFeedByIDScopedToOwner(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	feed := testFeed(1, "https://example.com/feed", "test-feed")
	if err := db.CreateFeed(ctx, feed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.FeedByID(ctx, 2, feed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected other user's lookup to miss, got %+v", got)
	}
}

func TestTouchFeedRefreshedAt(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	feed := testFeed(1, "https://example.com/feed", "test-feed")
	if err := db.CreateFeed(ctx, feed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	at := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	if err := db.TouchFeedRefreshedAt(ctx, feed.ID, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.FeedByID(ctx, 1, feed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LastRefreshedAt == nil || !got.LastRefreshedAt.Equal(at) {
		t.Fatalf("expected refreshed-at %v, got %v", at, got.LastRefreshedAt)
	}
}

func TestInsertArticlesAndKeys(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	feed := testFeed(1, "https://www.reddit.com/r/golang", "r-golang")
	feed.Kind = domain.KindReddit
	if err := db.CreateFeed(ctx, feed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	articles := []domain.Article{
		{
			UserID:       1,
			FeedID:       feed.ID,
			Title:        "Self post",
			Slug:         "self-post",
			Link:         "https://www.reddit.com/r/golang/comments/a/",
			PublishedAt:  time.Now().UTC(),
			RedditPostID: "a",
		},
		{
			UserID:      1,
			FeedID:      feed.ID,
			Title:       "Link post",
			Slug:        "link-post",
			Link:        "https://blog.example.com/x",
			PublishedAt: time.Now().UTC(),
		},
	}

	if err := db.InsertArticles(ctx, articles); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	links, postIDs, err := db.ArticleKeys(ctx, feed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := links["https://blog.example.com/x"]; !ok {
		t.Errorf("expected link key present, got %v", links)
	}
	if _, ok := postIDs["a"]; !ok {
		t.Errorf("expected post ID key present, got %v", postIDs)
	}
	if len(postIDs) != 1 {
		t.Errorf("expected exactly one post ID, got %v", postIDs)
	}

	slugs, err := db.ArticleSlugs(ctx, feed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slugs) != 2 {
		t.Errorf("expected 2 slugs, got %v", slugs)
	}
}

func TestSoftDeleteCascadesToArticles(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	feed := testFeed(1, "https://example.com/feed", "test-feed")
	if err := db.CreateFeed(ctx, feed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	articles := []domain.Article{{
		UserID:      1,
		FeedID:      feed.ID,
		Title:       "Post",
		Slug:        "post",
		Link:        "https://example.com/post",
		PublishedAt: time.Now().UTC(),
	}}
	if err := db.InsertArticles(ctx, articles); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.SoftDeleteFeed(ctx, feed.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	links, _, err := db.ArticleKeys(ctx, feed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("expected cascaded soft delete, got %v", links)
	}
}

func TestUserSettingsDefault(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	settings, err := db.UserSettingsWithDefault(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if settings.AutoRefreshEnabled {
		t.Error("expected auto refresh disabled by default")
	}
	if settings.RefreshIntervalHours != 24 {
		t.Errorf("expected 24h default interval, got %d", settings.RefreshIntervalHours)
	}
}

func TestAutoRefreshUsers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, s := range []domain.UserSettings{
		{UserID: 1, AutoRefreshEnabled: true, RefreshIntervalHours: 6},
		{UserID: 2, AutoRefreshEnabled: false, RefreshIntervalHours: 24},
		{UserID: 3, AutoRefreshEnabled: true, RefreshIntervalHours: 12},
	} {
		if err := db.UpsertUserSettings(ctx, &s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	users, err := db.AutoRefreshUsers(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("expected 2 opted-in users, got %d", len(users))
	}
	if users[0].UserID != 1 || users[1].UserID != 3 {
		t.Errorf("unexpected users: %+v", users)
	}
}

func TestOwnedTagIDs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.db.ExecContext(ctx,
		"insert into tags (user_id, name) values (1, 'go'), (1, 'news'), (2, 'other')"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	owned, err := db.OwnedTagIDs(ctx, 1, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(owned) != 2 {
		t.Fatalf("expected 2 owned tags, got %v", owned)
	}
	if _, ok := owned[3]; ok {
		t.Error("expected other user's tag excluded")
	}
}
