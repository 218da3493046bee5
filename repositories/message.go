//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"bytes"
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	messagePrefix = "msg:"
	pairPrefix    = "pair:"
	userPrefix    = "user:"
	pendingPrefix = "pending:"
	sequenceKey   = "seq:msg"

	sequenceBandwidth = 100
)

type IMessageRepository interface {
	InsertOne(ctx context.Context, message DiskMessage) (DiskMessage, error)
	Find(ctx context.Context, filter MessageFilter, options FindOptions) ([]DiskMessage, error)
	Count(ctx context.Context, filter MessageFilter) (int, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) (UpdateResult, error)
}

type DiskMessage struct {
	ID        uuid.UUID
	Sender    string
	Recipient string
	Content   domain.Content
	At        time.Time
	Status    domain.Status
	Seq       uint64
}

// MessageFilter selects messages. At least one of Between, Involving or Recipient is required:
// they pick the index that is scanned, the remaining fields are checked on every record.
type MessageFilter struct {
	// Between holds two users, it matches messages exchanged in either direction.
	Between   []string
	Involving string
	Recipient string
	Statuses  []domain.Status
}

// FindOptions sorts by timestamp then insertion order, newest first unless Ascending.
// A zero Limit returns every match.
type FindOptions struct {
	Skip      int
	Limit     int
	Ascending bool
}

// StatusUpdate moves the listed messages addressed to Recipient to status To.
type StatusUpdate struct {
	IDs       []uuid.UUID
	Recipient string
	To        domain.Status
}

type UpdateResult struct {
	Updated []DiskMessage
	// Rejected ids are unknown or not addressed to the recipient.
	Rejected []uuid.UUID
	// Unchanged ids already reached To or a later status.
	Unchanged []uuid.UUID
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq}, nil
}

// Close releases the leased sequence range.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// InsertOne persists a message and its index entries in a single transaction.
// Index keys are formatted as "{scope}{timestamp_padded}:{seq_padded}:{uuid}" so that a
// prefix scan returns messages in chronological order, insertion order breaking ties.
// The message is indexed under the pair of users, under each party, and, while it is
// still sent, under the recipient's pending scope.
func (m *MessageRepository) InsertOne(ctx context.Context, message DiskMessage) (DiskMessage, error) {
	if err := ctx.Err(); err != nil {
		return DiskMessage{}, err
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	next, err := m.seq.Next()
	if err != nil {
		return DiskMessage{}, err
	}
	message.Seq = next + 1

	data, err := codec.Marshal(fromDiskMessage(message))
	if err != nil {
		return DiskMessage{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		id := []byte(message.ID.String())
		suffix := indexSuffix(message)
		if err := txn.Set(messageKey(message.ID), data); err != nil {
			return err
		}
		if err := txn.Set([]byte(pairScope(message.Sender, message.Recipient)+suffix), id); err != nil {
			return err
		}
		if err := txn.Set([]byte(userScope(message.Sender)+suffix), id); err != nil {
			return err
		}
		if message.Recipient != message.Sender {
			if err := txn.Set([]byte(userScope(message.Recipient)+suffix), id); err != nil {
				return err
			}
		}
		if message.Status == domain.StatusSent {
			return txn.Set([]byte(pendingScope(message.Recipient)+suffix), id)
		}
		return nil
	})
	if err != nil {
		return DiskMessage{}, err
	}
	return message, nil
}

// Find scans the index chosen by the filter, skipping and limiting after filtering.
// When the index fully covers the filter, skipped entries are passed over by key.
func (m *MessageRepository) Find(ctx context.Context, filter MessageFilter, options FindOptions) ([]DiskMessage, error) {
	prefix, covered, err := filter.scope()
	if err != nil {
		return nil, err
	}

	var res []DiskMessage
	err = m.db.View(func(txn *badger.Txn) error {
		skipped, keysOnly := 0, 0
		if covered {
			skipped, keysOnly = options.Skip, options.Skip
		}
		return m.iterate(ctx, txn, prefix, !options.Ascending, keysOnly, func(message DiskMessage) bool {
			if !filter.matches(message) {
				return true
			}
			if skipped < options.Skip {
				skipped++
				return true
			}
			res = append(res, message)
			return options.Limit <= 0 || len(res) < options.Limit
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Count returns the number of messages matching the filter.
// When the index fully covers the filter, only keys are read.
func (m *MessageRepository) Count(ctx context.Context, filter MessageFilter) (int, error) {
	prefix, covered, err := filter.scope()
	if err != nil {
		return 0, err
	}

	count := 0
	err = m.db.View(func(txn *badger.Txn) error {
		if !covered {
			return m.iterate(ctx, txn, prefix, false, 0, func(message DiskMessage) bool {
				if filter.matches(message) {
					count++
				}
				return true
			})
		}
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// UpdateStatus applies the whole batch in one transaction: either every eligible message
// moves to the new status or, on error, none does.
// Messages are only moved forward; the pending index entry is dropped once a message leaves sent.
func (m *MessageRepository) UpdateStatus(ctx context.Context, update StatusUpdate) (UpdateResult, error) {
	if !update.To.Valid() {
		return UpdateResult{}, fmt.Errorf("%w: unknown status %d", errors.ErrValidation, update.To)
	}
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, err
	}

	var res UpdateResult
	err := m.db.Update(func(txn *badger.Txn) error {
		res = UpdateResult{}
		for _, id := range lo.Uniq(update.IDs) {
			message, err := getMessage(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				res.Rejected = append(res.Rejected, id)
				continue
			}
			if err != nil {
				return err
			}
			if message.Recipient != update.Recipient {
				res.Rejected = append(res.Rejected, id)
				continue
			}
			if !message.Status.CanAdvanceTo(update.To) {
				res.Unchanged = append(res.Unchanged, id)
				continue
			}

			previous := message.Status
			message.Status = update.To
			data, err := codec.Marshal(fromDiskMessage(message))
			if err != nil {
				return err
			}
			if err = txn.Set(messageKey(id), data); err != nil {
				return err
			}
			if previous == domain.StatusSent {
				if err = txn.Delete([]byte(pendingScope(message.Recipient) + indexSuffix(message))); err != nil {
					return err
				}
			}
			res.Updated = append(res.Updated, message)
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return res, nil
}

// iterate walks the index entries under prefix and resolves each one to its message.
// The first skip entries are stepped over without reading their message.
// visit returns false to stop.
func (m *MessageRepository) iterate(ctx context.Context, txn *badger.Txn, prefix string,
	newestFirst bool, skip int, visit func(DiskMessage) bool) error {
	options := badger.DefaultIteratorOptions
	options.Reverse = newestFirst
	options.Prefix = []byte(prefix)
	it := txn.NewIterator(options)
	defer it.Close()

	seekKey := []byte(prefix)
	if newestFirst {
		// Let's go past the newest position of the scope, then walk back
		seekKey = append(seekKey, 0xFF)
	}

	for it.Seek(seekKey); it.ValidForPrefix([]byte(prefix)); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skip > 0 {
			skip--
			continue
		}
		var id uuid.UUID
		err := it.Item().Value(func(value []byte) error {
			parsed, err := uuid.ParseBytes(value)
			id = parsed
			return err
		})
		if err != nil {
			return err
		}
		message, err := getMessage(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			m.log.Warn("Dangling index entry", "key", string(it.Item().Key()))
			continue
		}
		if err != nil {
			return err
		}
		if !visit(message) {
			return nil
		}
	}
	return nil
}

func getMessage(txn *badger.Txn, id uuid.UUID) (DiskMessage, error) {
	item, err := txn.Get(messageKey(id))
	if err != nil {
		return DiskMessage{}, err
	}
	var message DiskMessage
	err = item.Value(func(value []byte) error {
		message, err = DecodeMessage(value)
		return err
	})
	return message, err
}

// scope picks the narrowest index for the filter. covered is true when every
// entry under the prefix matches the filter.
func (f MessageFilter) scope() (prefix string, covered bool, err error) {
	switch {
	case len(f.Between) == 2:
		return pairScope(f.Between[0], f.Between[1]),
			f.Involving == "" && f.Recipient == "" && len(f.Statuses) == 0, nil
	case len(f.Between) != 0:
		return "", false, fmt.Errorf("%w: between needs exactly two users", errors.ErrValidation)
	case f.Recipient != "" && len(f.Statuses) == 1 && f.Statuses[0] == domain.StatusSent:
		return pendingScope(f.Recipient), f.Involving == "", nil
	case f.Recipient != "":
		return userScope(f.Recipient), false, nil
	case f.Involving != "":
		return userScope(f.Involving), len(f.Statuses) == 0, nil
	default:
		return "", false, fmt.Errorf("%w: message filter has no scope", errors.ErrValidation)
	}
}

func (f MessageFilter) matches(message DiskMessage) bool {
	if len(f.Between) == 2 {
		a, b := f.Between[0], f.Between[1]
		if !(message.Sender == a && message.Recipient == b) && !(message.Sender == b && message.Recipient == a) {
			return false
		}
	}
	if f.Involving != "" && message.Sender != f.Involving && message.Recipient != f.Involving {
		return false
	}
	if f.Recipient != "" && message.Recipient != f.Recipient {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, message.Status) {
		return false
	}
	return true
}

func messageKey(id uuid.UUID) []byte {
	return []byte(messagePrefix + id.String())
}

// indexSuffix pads the timestamp to 19 digits and the sequence to 20 digits,
// so lexicographical order is chronological order.
func indexSuffix(message DiskMessage) string {
	return fmt.Sprintf("%019d:%020d:%s", message.At.UnixNano(), message.Seq, message.ID)
}

// User ids are hex encoded in keys so that they never contain the ':' separator.
func pairScope(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return fmt.Sprintf("%s%x:%x:", pairPrefix, pair[0], pair[1])
}

func userScope(user string) string {
	return fmt.Sprintf("%s%x:", userPrefix, user)
}

func pendingScope(user string) string {
	return fmt.Sprintf("%s%x:", pendingPrefix, user)
}

// IsMessageKey reports whether a raw BadgerDB key holds a message record.
func IsMessageKey(key []byte) bool {
	return bytes.HasPrefix(key, []byte(messagePrefix))
}

type messageRecord struct {
	ID        uuid.UUID `cbor:"id"`
	Sender    string    `cbor:"sender"`
	Recipient string    `cbor:"recipient"`
	Kind      string    `cbor:"kind"`
	Text      string    `cbor:"text,omitempty"`
	FileURL   string    `cbor:"file_url,omitempty"`
	At        int64     `cbor:"at"`
	Status    int       `cbor:"status"`
	Seq       uint64    `cbor:"seq"`
}

func fromDiskMessage(message DiskMessage) messageRecord {
	return messageRecord{
		ID:        message.ID,
		Sender:    message.Sender,
		Recipient: message.Recipient,
		Kind:      string(message.Content.Type),
		Text:      message.Content.Text,
		FileURL:   message.Content.FileURL,
		At:        message.At.UnixNano(),
		Status:    int(message.Status),
		Seq:       message.Seq,
	}
}

// DecodeMessage turns a stored message record back into a DiskMessage.
func DecodeMessage(value []byte) (DiskMessage, error) {
	var record messageRecord
	if err := codec.Unmarshal(value, &record); err != nil {
		return DiskMessage{}, err
	}
	return DiskMessage{
		ID:        record.ID,
		Sender:    record.Sender,
		Recipient: record.Recipient,
		Content: domain.Content{
			Type:    domain.ContentType(record.Kind),
			Text:    record.Text,
			FileURL: record.FileURL,
		},
		At:     time.Unix(0, record.At).UTC(),
		Status: domain.Status(record.Status),
		Seq:    record.Seq,
	}, nil
}
