package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func texts(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.Content.Text })
}

func TestPager_Pages_From_Newest_Rendered_Chronologically(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	// Given m1..m5 exchanged one second apart, in both directions
	f.send(t, base, "alice", "bob", "m1")
	f.send(t, base.Add(1*time.Second), "bob", "alice", "m2")
	f.send(t, base.Add(2*time.Second), "alice", "bob", "m3")
	f.send(t, base.Add(3*time.Second), "bob", "alice", "m4")
	f.send(t, base.Add(4*time.Second), "alice", "bob", "m5")
	f.send(t, base, "alice", "clara", "elsewhere")

	pager := NewPager(slog.Default(), f.messages, 1)

	first, err := pager.Page(ctx, domain.PageQuery{UserA: "alice", UserB: "bob", Page: 1, Size: 2})
	req.NoError(err)
	req.Equal([]string{"m4", "m5"}, texts(first.Messages))
	req.Equal(5, first.TotalCount)
	req.Equal(3, first.TotalPages)
	req.True(first.HasMore)

	// The pair is symmetric
	second, err := pager.Page(ctx, domain.PageQuery{UserA: "bob", UserB: "alice", Page: 2, Size: 2})
	req.NoError(err)
	req.Equal([]string{"m2", "m3"}, texts(second.Messages))
	req.True(second.HasMore)

	last, err := pager.Page(ctx, domain.PageQuery{UserA: "alice", UserB: "bob", Page: 3, Size: 2})
	req.NoError(err)
	req.Equal([]string{"m1"}, texts(last.Messages))
	req.False(last.HasMore)
}

func TestPager_Past_The_End_Is_Empty(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.send(t, time.Now().UTC(), "alice", "bob", "m1")

	page, err := NewPager(slog.Default(), f.messages, 1).
		Page(context.Background(), domain.PageQuery{UserA: "alice", UserB: "bob", Page: 4, Size: 10})

	req.NoError(err)
	req.NotNil(page.Messages)
	req.Empty(page.Messages)
	req.False(page.HasMore)
	req.Equal(1, page.TotalCount)
}

func TestPager_Invalid_Query_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	pager := NewPager(slog.Default(), f.messages, 1)

	for _, q := range []domain.PageQuery{
		{UserA: "alice", UserB: "bob", Page: 0, Size: 10},
		{UserA: "alice", UserB: "bob", Page: 1, Size: 0},
		{UserA: "", UserB: "bob", Page: 1, Size: 10},
	} {
		_, err := pager.Page(context.Background(), q)
		req.ErrorIs(err, errors.ErrValidation)
	}
}
