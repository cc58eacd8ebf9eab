package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/novapages/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPage(id uint, path, title, body string, active bool) db.Page {
	return db.Page{
		Model:    gorm.Model{ID: id},
		FullPath: path,
		NavTitle: title,
		Active:   active,
		Blocks:   []db.RepeaterBlock{{Type: db.BlockTypeMarkdown, Content: body}},
	}
}

func TestIndexPageAndSearch(t *testing.T) {
	idx, err := NewMemory(nil)
	require.NoError(t, err)
	defer idx.Close()

	about := newPage(1, "about", "About us", "We build lighthouses", true)
	team := newPage(2, "about/team", "Team", "Keepers of the lighthouse archive", true)
	require.NoError(t, idx.IndexPage(&about))
	require.NoError(t, idx.IndexPage(&team))

	res, err := idx.Search("archive", 5)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	require.Equal(t, uint(2), res.Hits[0].PageID)
	require.Equal(t, "about/team", res.Hits[0].FullPath)
	require.Equal(t, "Team", res.Hits[0].Title)
}

func TestIndexPageRemovesInactive(t *testing.T) {
	idx, err := NewMemory(nil)
	require.NoError(t, err)
	defer idx.Close()

	page := newPage(3, "hidden", "Hidden", "secret plans", true)
	require.NoError(t, idx.IndexPage(&page))

	page.Active = false
	require.NoError(t, idx.IndexPage(&page))

	count, err := idx.DocCount()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRebuildDropsStaleDocuments(t *testing.T) {
	idx, err := NewMemory(nil)
	require.NoError(t, err)
	defer idx.Close()

	stale := newPage(9, "old", "Old", "gone", true)
	require.NoError(t, idx.IndexPage(&stale))

	require.NoError(t, idx.Rebuild([]db.Page{
		newPage(1, "a", "A", "alpha", true),
		newPage(2, "b", "B", "beta", true),
		newPage(3, "c", "C", "gamma", false),
	}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	res, err := idx.Search("gone", 5)
	require.NoError(t, err)
	require.Empty(t, res.Hits)
}

func TestSearchBlankQuery(t *testing.T) {
	idx, err := NewMemory(nil)
	require.NoError(t, err)
	defer idx.Close()

	res, err := idx.Search("   ", 5)
	require.NoError(t, err)
	require.Empty(t, res.Hits)
}

type stubSource struct {
	pages []db.Page
	err   error
}

func (s stubSource) ListActive(context.Context) ([]db.Page, error) { return s.pages, s.err }

type observerStub struct{ runs, failures int }

func (o *observerStub) Reindex(_ time.Duration, ok bool) {
	o.runs++
	if !ok {
		o.failures++
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	idx, err := NewMemory(nil)
	require.NoError(t, err)
	defer idx.Close()

	obs := &observerStub{}
	s, err := NewScheduler(idx, stubSource{pages: []db.Page{newPage(1, "a", "A", "alpha", true)}}, obs, nil)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))

	failing, err := NewScheduler(idx, stubSource{err: errors.New("db down")}, obs, nil)
	require.NoError(t, err)
	require.Error(t, failing.RunOnce(context.Background()))

	require.Equal(t, 2, obs.runs)
	require.Equal(t, 1, obs.failures)

	_, err = s.Schedule(0)
	require.Error(t, err)
}
