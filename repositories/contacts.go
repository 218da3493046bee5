package repositories

import (
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
)

const idField = "_id"

var contactFields = []string{"first_name", "last_name", "username", "email"}

// ContactIndex is the full text index used to look users up by name, username or email.
// Values are indexed lowercased and whole, a search term matches anywhere inside them.
type ContactIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewContactIndex(writer *bluge.Writer, log *slog.Logger) *ContactIndex {
	return &ContactIndex{writer: writer, log: log}
}

// Index adds or replaces the searchable fields of a profile.
func (c *ContactIndex) Index(profile domain.Profile) error {
	doc := contactDocument(profile)
	if err := c.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index contact %s: %w", profile.ID, err)
	}
	return nil
}

// IndexAll replaces many profiles in a single batch.
func (c *ContactIndex) IndexAll(profiles []domain.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, profile := range profiles {
		doc := contactDocument(profile)
		batch.Update(doc.ID(), doc)
	}
	if err := c.writer.Batch(batch); err != nil {
		return fmt.Errorf("index %d contacts: %w", len(profiles), err)
	}
	return nil
}

func contactDocument(profile domain.Profile) *bluge.Document {
	doc := bluge.NewDocument(profile.ID)
	values := []string{profile.FirstName, profile.LastName, profile.Username, profile.Email}
	for i, field := range contactFields {
		if values[i] == "" {
			continue
		}
		doc.AddField(bluge.NewKeywordField(field, strings.ToLower(values[i])))
	}
	return doc
}

// Search returns up to limit user ids whose fields contain term, excluding excludeID.
// Wildcard characters in term are taken literally. An empty term finds nobody.
func (c *ContactIndex) Search(ctx context.Context, term, excludeID string, limit int) ([]string, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	term = strings.NewReplacer("*", "", "?", "").Replace(term)
	if term == "" || limit <= 0 {
		return []string{}, nil
	}

	query := bluge.NewBooleanQuery().SetMinShould(1)
	for _, field := range contactFields {
		query.AddShould(bluge.NewWildcardQuery("*" + term + "*").SetField(field))
	}
	if excludeID != "" {
		query.AddMustNot(bluge.NewTermQuery(excludeID).SetField(idField))
	}

	reader, err := c.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open contact reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			c.log.Warn("Failed to close contact reader", "error", err)
		}
	}()

	request := bluge.NewTopNSearch(limit, query).SortBy([]string{idField})
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}

	ids := make([]string, 0, limit)
	match, err := matches.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return ids, nil
}
