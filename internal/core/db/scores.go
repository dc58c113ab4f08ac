package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/mailscore/internal/types"
)

// ScoreRecord is one persisted score result.
type ScoreRecord struct {
	ScoreID    types.MessageID `db:"score_id"`
	Mailbox    string          `db:"mailbox"`
	MessageKey string          `db:"message_key"`
	MessageID  string          `db:"message_id"`
	Subject    string          `db:"subject"`
	Score      int             `db:"score"`
	Flags      string          `db:"flags"`
	ScoredAt   time.Time       `db:"scored_at"`
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// SaveScores upserts the current score and flags of every email in one
// transaction. Rows are keyed by (mailbox, message key); an existing row
// keeps its score_id.
func (q *Queries) SaveScores(mailbox string, emails []*types.Email, at time.Time) error {
	return q.InTx(func(tx *Queries) error {
		for _, e := range emails {
			env := e.Envelope()
			_, err := tx.Exec("upsert-message-score",
				string(types.NewMessageID()),
				mailbox,
				e.Key,
				env.MessageID,
				env.Subject,
				e.Score(),
				e.Flags().String(),
				at.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to save score for %s: %w", e.Key, err)
			}
		}
		return nil
	})
}

// MessageScore returns the stored score of one message.
func (q *Queries) MessageScore(mailbox, key string) (*ScoreRecord, error) {
	var rec ScoreRecord
	err := q.Get("get-message-score", &rec, mailbox, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return &rec, nil
}

// MailboxScores lists the stored scores of a mailbox, highest first.
func (q *Queries) MailboxScores(mailbox string) ([]ScoreRecord, error) {
	var recs []ScoreRecord
	if err := q.Select("list-mailbox-scores", &recs, mailbox); err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	return recs, nil
}

// DeleteMailboxScores removes every stored score of a mailbox and returns
// the number of rows removed.
func (q *Queries) DeleteMailboxScores(mailbox string) (int64, error) {
	res, err := q.Exec("delete-mailbox-scores", mailbox)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scores: %w", err)
	}
	return res.RowsAffected()
}
