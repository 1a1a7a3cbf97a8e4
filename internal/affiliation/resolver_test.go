package affiliation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CitationMap/internal/batch"
	"CitationMap/internal/models"
	"CitationMap/internal/platform"
)

type fakeAuthors struct {
	mu       sync.Mutex
	profiles map[string]platform.AuthorProfile
	orgs     map[string]string
	calls    map[string]int
}

func (f *fakeAuthors) Author(_ context.Context, id string) (platform.AuthorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	p, ok := f.profiles[id]
	if !ok {
		return platform.AuthorProfile{}, platform.ErrBlocked
	}
	return p, nil
}

func (f *fakeAuthors) OrganizationName(_ context.Context, org string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["org:"+org]++
	return f.orgs[org], nil
}

func (f *fakeAuthors) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeFallback map[string]string

func (f fakeFallback) AuthorAffiliation(_ context.Context, id string) (string, error) {
	aff, ok := f[id]
	if !ok {
		return "", errors.New("not found")
	}
	return aff, nil
}

func newFakeAuthors() *fakeAuthors {
	return &fakeAuthors{
		profiles: map[string]platform.AuthorProfile{
			"u1": {ID: "u1", Name: "Ann", Affiliation: "Professor at Stanford University", OrganizationID: "org1"},
			"u2": {ID: "u2", Name: "Bob", Affiliation: "MIT; Harvard University"},
			"u3": {ID: "u3", Name: "Cid", Affiliation: ""},
		},
		orgs:  map[string]string{"org1": "Stanford University"},
		calls: map[string]int{},
	}
}

func rec(id, paper string) models.CitingAuthorRecord {
	return models.CitingAuthorRecord{AuthorID: id, AuthorName: "crawl-" + id, CitingPaperTitle: paper, CitedPaperTitle: "Mine"}
}

func TestSelfReportedResolver(t *testing.T) {
	src := newFakeAuthors()
	strategy, err := NewStrategy(KindSelfReported, src, true)
	require.NoError(t, err)
	r := NewResolver(strategy, ResolverOptions{Batch: batch.Options{Workers: 3}})

	out, summary := r.Resolve(context.Background(), []models.CitingAuthorRecord{
		rec("u1", "p1"),
		rec(models.NoAuthorFound, "p2"),
		rec("u2", "p3"),
		rec("u1", "p4"),
		rec("gone", "p5"),
	})

	// u1 只查询一次
	assert.Equal(t, 1, src.calls["u1"])
	assert.Equal(t, 0, src.calls[models.NoAuthorFound])
	assert.Equal(t, batch.Summary{Stage: "affiliations", Total: 3, Resolved: 2, Failed: 1}, summary)

	require.Len(t, out, 6)
	assert.Equal(t, "Stanford University", out[0].Affiliation)
	assert.Equal(t, "Ann", out[0].AuthorName)
	assert.True(t, out[1].IsSentinel())
	assert.Empty(t, out[1].Affiliation)
	assert.Equal(t, "MIT", out[2].Affiliation)
	assert.Equal(t, "Harvard University", out[3].Affiliation)
	assert.Equal(t, "p4", out[4].CitingPaperTitle)
	assert.Equal(t, "gone", out[5].AuthorID)
	assert.Empty(t, out[5].Affiliation)
	assert.Equal(t, "crawl-gone", out[5].AuthorName)
}

func TestResolverDropsDuplicateTuples(t *testing.T) {
	src := newFakeAuthors()
	strategy, err := NewStrategy(KindSelfReported, src, true)
	require.NoError(t, err)
	r := NewResolver(strategy, ResolverOptions{})

	sentinel := rec(models.NoAuthorFound, "p2")
	otherSentinel := sentinel
	otherSentinel.AuthorName = "someone else"
	out, _ := r.Resolve(context.Background(), []models.CitingAuthorRecord{
		rec("u2", "p1"),
		sentinel,
		rec("u2", " P1 "),
		sentinel,
		otherSentinel,
		rec("u2", "p1"),
	})

	// u2 有两个机构，每个 (作者, 论文, 被引论文, 机构) 只保留一行
	require.Len(t, out, 4)
	assert.Equal(t, "MIT", out[0].Affiliation)
	assert.Equal(t, "Harvard University", out[1].Affiliation)
	assert.True(t, out[2].IsSentinel())
	assert.Equal(t, "someone else", out[3].AuthorName)
	assert.Equal(t, 1, src.calls["u2"])
}

func TestVerifiedResolverSkipsUnverified(t *testing.T) {
	src := newFakeAuthors()
	strategy, err := NewStrategy(KindVerified, src, false)
	require.NoError(t, err)
	r := NewResolver(strategy, ResolverOptions{})

	out, _ := r.Resolve(context.Background(), []models.CitingAuthorRecord{rec("u1", "p1"), rec("u2", "p2")})
	require.Len(t, out, 1)
	assert.Equal(t, "Stanford University", out[0].Affiliation)
	assert.Equal(t, 1, src.calls["org:org1"])
}

func TestResolverFallbackAndMemo(t *testing.T) {
	src := newFakeAuthors()
	strategy, _ := NewStrategy(KindSelfReported, src, true)
	memo := NewMapMemo()
	r := NewResolver(strategy, ResolverOptions{
		Fallback: fakeFallback{"gone": "ETH Zurich, Switzerland"},
		Memo:     memo,
	})

	out, summary := r.Resolve(context.Background(), []models.CitingAuthorRecord{rec("gone", "p1")})
	require.Len(t, out, 1)
	assert.Equal(t, "ETH Zurich, Switzerland", out[0].Affiliation)
	assert.Equal(t, 1, summary.Resolved)

	before := src.total()
	out, _ = r.Resolve(context.Background(), []models.CitingAuthorRecord{rec("gone", "p9")})
	require.Len(t, out, 1)
	assert.Equal(t, before, src.total())
	assert.Equal(t, "p9", out[0].CitingPaperTitle)
}

func TestSentinelOnlyMakesNoCalls(t *testing.T) {
	src := newFakeAuthors()
	strategy, _ := NewStrategy(KindVerified, src, false)
	r := NewResolver(strategy, ResolverOptions{})

	out, summary := r.Resolve(context.Background(), []models.CitingAuthorRecord{rec(models.NoAuthorFound, "x")})
	assert.Equal(t, 0, src.total())
	assert.Equal(t, 0, summary.Total)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsSentinel())
}

func TestNewStrategyUnknown(t *testing.T) {
	_, err := NewStrategy("llm", nil, false)
	assert.Error(t, err)
}

func TestListAffiliations(t *testing.T) {
	pairs := ListAffiliations([]models.AffiliationRecord{
		{AuthorID: "b", AuthorName: "Bob", Affiliation: "MIT"},
		{AuthorID: "a", AuthorName: "Ann", Affiliation: "Stanford"},
		{AuthorID: "b", AuthorName: "Bob", Affiliation: "MIT"},
		{AuthorID: models.NoAuthorFound, AuthorName: "?", Affiliation: ""},
	})
	assert.Equal(t, []AuthorAffiliation{{"Ann", "Stanford"}, {"Bob", "MIT"}}, pairs)
}
