package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedkeeper/internal/domain"
)

func (d *Database) CreateFeed(ctx context.Context, feed *domain.Feed) error {
	feed.URL = strings.TrimSpace(feed.URL)
	if feed.URL == "" {
		return errors.New("feed URL is empty")
	}

	feed.Title = strings.TrimSpace(feed.Title)
	if feed.Title == "" {
		feed.Title = feed.URL
	}

	if feed.Status == "" {
		feed.Status = domain.StatusPublished
	}

	query := `insert into feeds
	(user_id, url, title, description, image_url, slug, kind, status)
	values (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		feed.UserID, feed.URL, feed.Title, feed.Description,
		feed.ImageURL, feed.Slug, string(feed.Kind), string(feed.Status))
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to fetch inserted ID: %w", err)
	}
	feed.ID = id

	return nil
}

const feedColumns = `id, user_id, url, title, description, image_url,
	slug, kind, last_refreshed_at, status, created_at`

func (d *Database) FeedByID(
	ctx context.Context,
	userID int64,
	feedID int64,
) (*domain.Feed, error) {
	query := `select ` + feedColumns + `
	from feeds
	where id = ? and user_id = ? and status != 'deleted'`

	return d.scanOneFeed(ctx, query, feedID, userID)
}

func (d *Database) FeedByURL(
	ctx context.Context,
	userID int64,
	feedURL string,
) (*domain.Feed, error) {
	query := `select ` + feedColumns + `
	from feeds
	where user_id = ? and url = ? and status != 'deleted'`

	return d.scanOneFeed(ctx, query, userID, strings.TrimSpace(feedURL))
}

func (d *Database) UserFeeds(ctx context.Context, userID int64) ([]domain.Feed, error) {
	query := `select ` + feedColumns + `
	from feeds
	where user_id = ? and status != 'deleted'
	order by id`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "UserFeeds")

	var feeds []domain.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}

		feeds = append(feeds, *feed)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return feeds, nil
}

func (d *Database) FeedSlugs(ctx context.Context, userID int64) (map[string]struct{}, error) {
	query := "select slug from feeds where user_id = ? and status != 'deleted'"

	return d.stringSet(ctx, "FeedSlugs", query, userID)
}

func (d *Database) TouchFeedRefreshedAt(
	ctx context.Context,
	feedID int64,
	at time.Time,
) error {
	query := "update feeds set last_refreshed_at = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, at, feedID)

	return err
}

func (d *Database) SoftDeleteFeed(ctx context.Context, feedID int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer d.rollback(ctx, tx, "SoftDeleteFeed")

	if _, err = tx.ExecContext(ctx,
		"update feeds set status = 'deleted' where id = ?", feedID); err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"update articles set status = 'deleted' where feed_id = ?", feedID); err != nil {
		return fmt.Errorf("failed to delete feed articles: %w", err)
	}

	return tx.Commit()
}

func (d *Database) ArticleKeys(
	ctx context.Context,
	feedID int64,
) (map[string]struct{}, map[string]struct{}, error) {
	query := `select link, reddit_post_id
	from articles
	where feed_id = ? and status != 'deleted'`

	rows, err := d.db.QueryContext(ctx, query, feedID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ArticleKeys")

	links := make(map[string]struct{})
	postIDs := make(map[string]struct{})

	for rows.Next() {
		var link string
		var postID sql.NullString

		if err = rows.Scan(&link, &postID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if link = strings.TrimSpace(link); link != "" {
			links[link] = struct{}{}
		}
		if postID.Valid && strings.TrimSpace(postID.String) != "" {
			postIDs[strings.TrimSpace(postID.String)] = struct{}{}
		}
	}

	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return links, postIDs, nil
}

func (d *Database) ArticleSlugs(ctx context.Context, feedID int64) (map[string]struct{}, error) {
	query := "select slug from articles where feed_id = ? and status != 'deleted'"

	return d.stringSet(ctx, "ArticleSlugs", query, feedID)
}

// InsertArticles writes a batch atomically: either every article lands or
// none do.
func (d *Database) InsertArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer d.rollback(ctx, tx, "InsertArticles")

	query := `insert into articles
	(user_id, feed_id, title, slug, description, content, link, image_url,
	published_at, source_label, reddit_post_id, reddit_permalink, subreddit,
	read, starred, read_later, status)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close statement",
				"error", err,
				"operation", "InsertArticles")
		}
	}()

	for _, a := range articles {
		status := a.Status
		if status == "" {
			status = domain.StatusPublished
		}

		if _, err = stmt.ExecContext(ctx,
			a.UserID, a.FeedID, a.Title, a.Slug, a.Description,
			nullIfEmpty(a.Content), a.Link, a.ImageURL, a.PublishedAt,
			a.SourceLabel, nullIfEmpty(a.RedditPostID),
			nullIfEmpty(a.RedditPermalink), nullIfEmpty(a.Subreddit),
			a.Read, a.Starred, a.ReadLater, string(status)); err != nil {
			return fmt.Errorf("failed to insert article %q: %w", a.Slug, err)
		}
	}

	return tx.Commit()
}

func (d *Database) UserSettingsWithDefault(
	ctx context.Context,
	userID int64,
) (*domain.UserSettings, error) {
	query := `select user_id, auto_refresh_enabled, refresh_interval_hours
	from user_settings
	where user_id = ?`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "UserSettingsWithDefault")

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}

		return &domain.UserSettings{
			UserID:               userID,
			AutoRefreshEnabled:   false,
			RefreshIntervalHours: 24,
		}, nil
	}

	var us domain.UserSettings
	if err = rows.Scan(&us.UserID, &us.AutoRefreshEnabled, &us.RefreshIntervalHours); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return &us, nil
}

func (d *Database) UpsertUserSettings(ctx context.Context, settings *domain.UserSettings) error {
	query := `insert into user_settings (user_id, auto_refresh_enabled, refresh_interval_hours)
	values (?, ?, ?)
	on conflict (user_id) do update
	set auto_refresh_enabled = excluded.auto_refresh_enabled,
	refresh_interval_hours = excluded.refresh_interval_hours`

	_, err := d.db.ExecContext(ctx, query,
		settings.UserID, settings.AutoRefreshEnabled, settings.RefreshIntervalHours)

	return err
}

func (d *Database) AutoRefreshUsers(ctx context.Context) ([]domain.UserSettings, error) {
	query := `select user_id, auto_refresh_enabled, refresh_interval_hours
	from user_settings
	where auto_refresh_enabled = 1
	order by user_id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "AutoRefreshUsers")

	var users []domain.UserSettings
	for rows.Next() {
		var us domain.UserSettings
		if err = rows.Scan(&us.UserID, &us.AutoRefreshEnabled, &us.RefreshIntervalHours); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		users = append(users, us)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return users, nil
}

func (d *Database) OwnedTagIDs(
	ctx context.Context,
	userID int64,
	tagIDs []int64,
) (map[int64]struct{}, error) {
	owned := make(map[int64]struct{}, len(tagIDs))
	if len(tagIDs) == 0 {
		return owned, nil
	}

	placeholders := strings.Repeat("?,", len(tagIDs))
	placeholders = placeholders[:len(placeholders)-1]

	query := `select id from tags
	where user_id = ? and status != 'deleted' and id in (` + placeholders + `)`

	args := make([]any, 0, len(tagIDs)+1)
	args = append(args, userID)
	for _, id := range tagIDs {
		args = append(args, id)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "OwnedTagIDs")

	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		owned[id] = struct{}{}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return owned, nil
}

func (d *Database) ReplaceFeedTags(ctx context.Context, feedID int64, tagIDs []int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer d.rollback(ctx, tx, "ReplaceFeedTags")

	if _, err = tx.ExecContext(ctx,
		"delete from feed_tags where feed_id = ?", feedID); err != nil {
		return fmt.Errorf("failed to clear feed tags: %w", err)
	}

	for _, tagID := range tagIDs {
		if _, err = tx.ExecContext(ctx,
			"insert into feed_tags (feed_id, tag_id) values (?, ?)", feedID, tagID); err != nil {
			return fmt.Errorf("failed to insert feed tag: %w", err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*domain.Feed, error) {
	var (
		feed        domain.Feed
		kind        string
		status      string
		refreshedAt sql.NullTime
	)

	if err := row.Scan(
		&feed.ID, &feed.UserID, &feed.URL, &feed.Title, &feed.Description,
		&feed.ImageURL, &feed.Slug, &kind, &refreshedAt, &status,
		&feed.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	feed.URL = strings.TrimSpace(feed.URL)
	feed.Title = strings.TrimSpace(feed.Title)
	feed.Kind = domain.SourceKind(kind)
	feed.Status = domain.Status(status)

	if refreshedAt.Valid {
		t := refreshedAt.Time
		feed.LastRefreshedAt = &t
	}

	return &feed, nil
}

func (d *Database) scanOneFeed(
	ctx context.Context,
	query string,
	args ...any,
) (*domain.Feed, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "scanOneFeed")

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}

		return nil, nil
	}

	return scanFeed(rows)
}

func (d *Database) stringSet(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) (map[string]struct{}, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, operation)

	set := make(map[string]struct{})
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return set, nil
}

func (d *Database) closeRows(ctx context.Context, rows *sql.Rows, operation string) {
	if err := rows.Close(); err != nil {
		d.log.ErrorContext(ctx, "Failed to close rows",
			"error", err,
			"operation", operation)
	}
}

func (d *Database) rollback(ctx context.Context, tx *sql.Tx, operation string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		d.log.ErrorContext(ctx, "Failed to rollback transaction",
			"error", err,
			"operation", operation)
	}
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	return s
}
