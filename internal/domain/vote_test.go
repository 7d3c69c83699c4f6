package domain_test

import (
	"testing"

	"idea-board/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVoteState_Table(t *testing.T) {
	cases := []struct {
		from domain.VoteState
		dir  domain.VoteDirection
		want domain.VoteState
	}{
		{domain.VoteNone, domain.VoteUp, domain.VoteUpvoted},
		{domain.VoteNone, domain.VoteDown, domain.VoteDownvoted},
		{domain.VoteUpvoted, domain.VoteUp, domain.VoteNone},
		{domain.VoteUpvoted, domain.VoteDown, domain.VoteDownvoted},
		{domain.VoteDownvoted, domain.VoteDown, domain.VoteNone},
		{domain.VoteDownvoted, domain.VoteUp, domain.VoteUpvoted},
	}
	for _, tc := range cases {
		t.Run(tc.from.String()+"_"+string(tc.dir), func(t *testing.T) {
			assert.Equal(t, tc.want, domain.NextVoteState(tc.from, tc.dir))
		})
	}
}

func TestIdea_ApplyVote_KeepsSetsExclusive(t *testing.T) {
	idea := &domain.Idea{}
	steps := []domain.VoteDirection{
		domain.VoteUp, domain.VoteDown, domain.VoteDown, domain.VoteUp, domain.VoteUp, domain.VoteDown,
	}
	for _, dir := range steps {
		idea.ApplyVote("u1", dir)
		up := idea.VoteStateOf("u1") == domain.VoteUpvoted
		inUp, inDown := 0, 0
		for _, id := range idea.Upvotes {
			if id == "u1" {
				inUp++
			}
		}
		for _, id := range idea.Downvotes {
			if id == "u1" {
				inDown++
			}
		}
		assert.LessOrEqual(t, inUp+inDown, 1, "user must appear in at most one vote set")
		assert.Equal(t, up, inUp == 1)
	}
}

func TestIdea_ApplyVote_UpTwiceRoundTrips(t *testing.T) {
	idea := &domain.Idea{}

	first := idea.ApplyVote("u1", domain.VoteUp)
	assert.Equal(t, domain.VoteNone, first.From)
	assert.Equal(t, domain.VoteUpvoted, first.To)
	assert.Equal(t, "Upvoted successfully", first.Message())

	second := idea.ApplyVote("u1", domain.VoteUp)
	assert.Equal(t, domain.VoteNone, second.To)
	assert.Equal(t, "Upvote removed", second.Message())
	assert.Empty(t, idea.Upvotes)
	assert.Empty(t, idea.Downvotes)
}

func TestIdea_ApplyVote_TwoUsersThenSwitch(t *testing.T) {
	idea := &domain.Idea{}
	idea.ApplyVote("u1", domain.VoteUp)
	idea.ApplyVote("u2", domain.VoteUp)
	require.Len(t, idea.Upvotes, 2)

	tr := idea.ApplyVote("u1", domain.VoteDown)
	assert.Equal(t, domain.VoteUpvoted, tr.From)
	assert.Equal(t, domain.VoteDownvoted, tr.To)
	assert.Equal(t, "Downvoted successfully", tr.Message())
	assert.Equal(t, []string{"u2"}, idea.Upvotes)
	assert.Equal(t, []string{"u1"}, idea.Downvotes)
}

func TestNormalizeTags(t *testing.T) {
	got := domain.NormalizeTags([]string{" go ", "", "web", "  ", "go"})
	assert.Equal(t, []string{"go", "web", "go"}, got)
}
