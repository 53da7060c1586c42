package storage

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nbd-wtf/go-nostr"

	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/event"
)

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = stderrors.New("not found")

/* ------------------------------------------------------------------ *
|  Writes                                                             |
* -------------------------------------------------------------------*/

// UpsertProfile stores rec unless a newer profile is already stored.
func (db *DB) UpsertProfile(ctx context.Context, rec ProfileRecord) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO profile (pubkey, event_id, name, about, picture, nip05, lud16, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (pubkey) DO UPDATE SET
		   event_id = EXCLUDED.event_id, name = EXCLUDED.name, about = EXCLUDED.about,
		   picture = EXCLUDED.picture, nip05 = EXCLUDED.nip05, lud16 = EXCLUDED.lud16,
		   created_at = EXCLUDED.created_at
		 WHERE profile.created_at < EXCLUDED.created_at`,
		rec.Pubkey, rec.EventID, rec.Name, rec.About, rec.Picture, rec.Nip05, rec.Lud16, int64(rec.CreatedAt))
	if err != nil {
		return errors.StorageError("upsert profile", err)
	}
	return nil
}

// InsertPost stores rec if its id is new.
func (db *DB) InsertPost(ctx context.Context, rec PostRecord) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO post (id, pubkey, content, reply_to, reply_to_root, reposted_id, relay_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Pubkey, rec.Content,
		nullable(rec.ReplyTo), nullable(rec.ReplyToRoot), nullable(rec.RepostedID),
		rec.RelayURL, int64(rec.CreatedAt))
	if err != nil {
		return errors.StorageError("insert post", err)
	}
	return nil
}

// ReplaceContacts swaps the owner's follow list for rec unless a newer list is stored.
func (db *DB) ReplaceContacts(ctx context.Context, rec ContactListRecord) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return errors.StorageError("replace contacts", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO contact_list (owner, event_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (owner) DO UPDATE SET event_id = EXCLUDED.event_id, created_at = EXCLUDED.created_at
		 WHERE contact_list.created_at < EXCLUDED.created_at`,
		rec.Owner, rec.EventID, int64(rec.CreatedAt))
	if err != nil {
		return errors.StorageError("replace contacts", err)
	}
	if tag.RowsAffected() == 0 {
		// an equal or newer list is already stored
		return nil
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM contact WHERE owner = $1`, rec.Owner)
	for _, c := range rec.Contacts {
		batch.Queue(`INSERT INTO contact (owner, pubkey, relay_url, petname) VALUES ($1, $2, $3, $4)
			ON CONFLICT (owner, pubkey) DO NOTHING`,
			rec.Owner, c.Pubkey, c.RelayURL, c.Petname)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.StorageError("replace contacts", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.StorageError("replace contacts", err)
	}
	return nil
}

// InsertReaction stores rec if its id is new.
func (db *DB) InsertReaction(ctx context.Context, rec ReactionRecord) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO reaction (id, pubkey, target_id, positive, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Pubkey, rec.TargetID, rec.Positive, int64(rec.CreatedAt))
	if err != nil {
		return errors.StorageError("insert reaction", err)
	}
	return nil
}

/* ------------------------------------------------------------------ *
|  Reads                                                              |
* -------------------------------------------------------------------*/

// LatestFeed returns up to limit posts by the owner's contacts created
// before until (or any time when until is nil), newest first.
func (db *DB) LatestFeed(ctx context.Context, owner string, limit int, until *nostr.Timestamp) ([]PostRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultFeedPageSize
	}
	var before *int64
	if until != nil {
		ts := int64(*until)
		before = &ts
	}

	queryCtx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	rows, err := db.Pool.Query(queryCtx,
		`SELECT p.id, p.pubkey, p.content, p.reply_to, p.reply_to_root, p.reposted_id, p.relay_url, p.created_at
		 FROM post p
		 JOIN contact c ON c.pubkey = p.pubkey AND c.owner = $1
		 WHERE $2::BIGINT IS NULL OR p.created_at < $2
		 ORDER BY p.created_at DESC
		 LIMIT $3`,
		owner, before, limit)
	if err != nil {
		return nil, errors.StorageError("latest feed", err)
	}
	defer rows.Close()

	posts := make([]PostRecord, 0, limit)
	for rows.Next() {
		var (
			rec                     PostRecord
			replyTo, root, reposted *string
			createdAt               int64
		)
		if err := rows.Scan(&rec.ID, &rec.Pubkey, &rec.Content, &replyTo, &root, &reposted, &rec.RelayURL, &createdAt); err != nil {
			return nil, errors.StorageError("latest feed", err)
		}
		rec.ReplyTo = fromNullable(replyTo)
		rec.ReplyToRoot = fromNullable(root)
		rec.RepostedID = fromNullable(reposted)
		rec.CreatedAt = nostr.Timestamp(createdAt)
		posts = append(posts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("latest feed", err)
	}
	return posts, nil
}

// LatestFeedTimestamp is the newest stored post time among the owner's
// contacts, or nil when nothing is stored yet.
func (db *DB) LatestFeedTimestamp(ctx context.Context, owner string) (*nostr.Timestamp, error) {
	queryCtx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	var latest *int64
	err := db.Pool.QueryRow(queryCtx,
		`SELECT MAX(p.created_at) FROM post p
		 JOIN contact c ON c.pubkey = p.pubkey AND c.owner = $1`,
		owner).Scan(&latest)
	if err != nil {
		return nil, errors.StorageError("latest feed timestamp", err)
	}
	if latest == nil {
		return nil, nil
	}
	ts := nostr.Timestamp(*latest)
	return &ts, nil
}

// Profile returns the stored metadata of pubkey.
func (db *DB) Profile(ctx context.Context, pubkey string) (ProfileRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	var (
		rec       ProfileRecord
		createdAt int64
	)
	err := db.Pool.QueryRow(queryCtx,
		`SELECT pubkey, event_id, name, about, picture, nip05, lud16, created_at
		 FROM profile WHERE pubkey = $1`, pubkey).
		Scan(&rec.Pubkey, &rec.EventID, &rec.Name, &rec.About, &rec.Picture, &rec.Nip05, &rec.Lud16, &createdAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return ProfileRecord{}, fmt.Errorf("profile %s: %w", pubkey, ErrNotFound)
	}
	if err != nil {
		return ProfileRecord{}, errors.StorageError("profile", err)
	}
	rec.CreatedAt = nostr.Timestamp(createdAt)
	return rec, nil
}

// Contacts returns the stored follow list of owner.
func (db *DB) Contacts(ctx context.Context, owner string) ([]event.ContactListEntry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	rows, err := db.Pool.Query(queryCtx,
		`SELECT pubkey, relay_url, petname FROM contact WHERE owner = $1 ORDER BY pubkey`, owner)
	if err != nil {
		return nil, errors.StorageError("contacts", err)
	}
	defer rows.Close()

	var contacts []event.ContactListEntry
	for rows.Next() {
		var c event.ContactListEntry
		if err := rows.Scan(&c.Pubkey, &c.RelayURL, &c.Petname); err != nil {
			return nil, errors.StorageError("contacts", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("contacts", err)
	}
	return contacts, nil
}
