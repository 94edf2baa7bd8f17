// Package store reads the local message database. It never writes to it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"

	_ "modernc.org/sqlite"

	"github.com/chatpilot/chatpilot/pkg/bus"
	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/utils"
)

// ErrStoreUnavailable is returned when the message database cannot be opened
// or queried. Callers treat it as fatal.
var ErrStoreUnavailable = errors.New("message store unavailable")

// reactionPattern matches tapback notifications such as `Loved “see you soon”`.
// "Questioned" is deliberately absent; it is rewritten into a clarification
// request downstream instead of being dropped.
var reactionPattern = regexp.MustCompile(`^(Loved|Liked|Disliked|Laughed at|Emphasized) [“"].*[”"]$`)

// IsReaction reports whether text is a reaction-only message.
func IsReaction(text string) bool {
	return reactionPattern.MatchString(text)
}

const fetchNewQuery = `
SELECT m.ROWID, COALESCE(m.text, ''), COALESCE(a.mime_type, ''), COALESCE(a.filename, '')
FROM message m
LEFT JOIN message_attachment_join maj ON m.ROWID = maj.message_id
LEFT JOIN attachment a ON maj.attachment_id = a.ROWID
INNER JOIN handle h ON m.handle_id = h.ROWID
WHERE m.ROWID > ? AND h.id = ? AND m.is_from_me = 0
ORDER BY m.ROWID DESC`

const lastIDQuery = `SELECT COALESCE(MAX(ROWID), 0) FROM message`

// Reader queries the message database. A connection is opened for each call
// and closed before it returns, so nothing is held across a pacing wait.
type Reader struct {
	dbPath          string
	attachmentsHome string
}

func NewReader(dbPath, attachmentsHome string) *Reader {
	return &Reader{dbPath: dbPath, attachmentsHome: attachmentsHome}
}

func (r *Reader) Path() string {
	return r.dbPath
}

func (r *Reader) open(ctx context.Context) (*sql.DB, error) {
	if _, err := os.Stat(r.dbPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	dsn := "file:" + (&url.URL{Path: r.dbPath}).EscapedPath() + "?mode=ro&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return db, nil
}

// LastMessageID returns the newest message id in the whole store, or 0 when
// the store is empty.
func (r *Reader) LastMessageID(ctx context.Context) (int64, error) {
	db, err := r.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var id int64
	if err := db.QueryRowContext(ctx, lastIDQuery).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return id, nil
}

// FetchNew returns messages from contactID newer than watermark, oldest
// first. Messages sent by the operator and reaction-only messages are
// excluded.
func (r *Reader) FetchNew(ctx context.Context, contactID string, watermark int64) ([]bus.InboundMessage, error) {
	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fetchNewQuery, watermark, contactID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	// rows arrive newest first, one per attachment
	var newestFirst []bus.InboundMessage
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id                int64
			text, mime, fname string
		)
		if err := rows.Scan(&id, &text, &mime, &fname); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		msg := r.toMessage(id, text, mime, fname)

		if i, seen := index[id]; seen {
			if !newestFirst[i].IsMedia && msg.IsMedia {
				newestFirst[i] = msg
			}
			continue
		}
		index[id] = len(newestFirst)
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	msgs := make([]bus.InboundMessage, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		m := newestFirst[i]
		if IsReaction(m.Text) {
			logger.DebugCF("store", "Dropped reaction", map[string]any{
				"message_id": m.ID,
				"preview":    utils.Truncate(m.Text, 40),
			})
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *Reader) toMessage(id int64, text, mime, filename string) bus.InboundMessage {
	kind := utils.ClassifyMedia(filename, mime)
	msg := bus.InboundMessage{
		ID:        id,
		Text:      text,
		MediaKind: kind,
		IsMedia:   kind != bus.MediaNone,
	}
	if msg.IsMedia {
		msg.MediaPath = utils.ExpandHome(filename, r.attachmentsHome)
	}
	return msg
}
