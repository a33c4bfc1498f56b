// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

type mockStore struct {
	mu         sync.Mutex
	exists     bool
	existsErr  error
	entries    []models.RatingEntry
	fetchErr   error
	saved      map[string][]models.RatingEntry
	saveCalled chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		saved:      make(map[string][]models.RatingEntry),
		saveCalled: make(chan struct{}, 1),
	}
}

func (m *mockStore) Exists(context.Context, string) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockStore) FetchRatings(context.Context, string, int) ([]models.RatingEntry, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.entries, nil
}

func (m *mockStore) PopularMovies(context.Context, int, int) ([]models.PopularityEntry, error) {
	return nil, nil
}

func (m *mockStore) SaveProfile(_ context.Context, username string, entries []models.RatingEntry) error {
	m.mu.Lock()
	m.saved[username] = entries
	m.mu.Unlock()
	select {
	case m.saveCalled <- struct{}{}:
	default:
	}
	return nil
}

func (m *mockStore) Ping(context.Context) error { return nil }

type mockScraper struct {
	exists  bool
	entries []models.RatingEntry
	err     error
	calls   int
}

func (m *mockScraper) Exists(context.Context, string) (bool, error) {
	return m.exists, nil
}

func (m *mockScraper) FetchRatings(context.Context, string, int) ([]models.RatingEntry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func TestCompositeServesFromStore(t *testing.T) {
	store := newMockStore()
	store.entries = []models.RatingEntry{{Slug: "heat", Title: "Heat", Rating: 4.5}}
	scraper := &mockScraper{}
	c := NewComposite(store, scraper)

	entries, err := c.FetchRatings(context.Background(), "cinephile", 5)
	if err != nil {
		t.Fatalf("FetchRatings: %v", err)
	}
	if len(entries) != 1 || entries[0].Slug != "heat" {
		t.Errorf("entries = %+v", entries)
	}
	if scraper.calls != 0 {
		t.Error("scraper should not be contacted when the store has the user")
	}
}

func TestCompositeScrapesUnknownUserAndPersists(t *testing.T) {
	store := newMockStore()
	store.fetchErr = ErrUserNotFound
	scraper := &mockScraper{entries: []models.RatingEntry{
		{Slug: "ronin", Title: "Ronin", Rating: 4.0},
	}}
	c := NewComposite(store, scraper)

	entries, err := c.FetchRatings(context.Background(), "newcomer", 5)
	if err != nil {
		t.Fatalf("FetchRatings: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}

	select {
	case <-store.saveCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("scraped profile was not persisted")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved["newcomer"]) != 1 {
		t.Errorf("saved = %+v", store.saved)
	}
}

func TestCompositeStoreErrorFallsThroughToScraper(t *testing.T) {
	store := newMockStore()
	store.fetchErr = errors.New("connection refused")
	scraper := &mockScraper{entries: []models.RatingEntry{
		{Slug: "heat", Title: "Heat", Rating: 4.5},
	}}
	c := NewComposite(store, scraper)

	entries, err := c.FetchRatings(context.Background(), "cinephile", 5)
	if err != nil {
		t.Fatalf("FetchRatings: %v", err)
	}
	if scraper.calls != 1 || len(entries) != 1 {
		t.Errorf("scraper calls = %d, entries = %+v", scraper.calls, entries)
	}
}

func TestCompositeEmptyRatingsNotRescrapped(t *testing.T) {
	store := newMockStore()
	store.fetchErr = ErrEmptyRatings
	scraper := &mockScraper{entries: []models.RatingEntry{
		{Slug: "heat", Title: "Heat", Rating: 4.5},
	}}
	c := NewComposite(store, scraper)

	_, err := c.FetchRatings(context.Background(), "lurker", 5)
	if !errors.Is(err, ErrEmptyRatings) {
		t.Fatalf("err = %v, want ErrEmptyRatings", err)
	}
	if scraper.calls != 0 {
		t.Error("a known empty profile should not trigger a scrape")
	}
}

func TestCompositeWithoutStore(t *testing.T) {
	scraper := &mockScraper{exists: true, entries: []models.RatingEntry{
		{Slug: "heat", Title: "Heat", Rating: 4.5},
	}}
	c := NewComposite(nil, scraper)

	ok, err := c.Exists(context.Background(), "cinephile")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	entries, err := c.FetchRatings(context.Background(), "cinephile", 5)
	if err != nil || len(entries) != 1 {
		t.Errorf("FetchRatings = %+v, %v", entries, err)
	}
}

func TestCompositeExistsStoreHitSkipsScraper(t *testing.T) {
	store := newMockStore()
	store.exists = true
	scraper := &mockScraper{}
	c := NewComposite(store, scraper)

	ok, err := c.Exists(context.Background(), "cinephile")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
}

func TestCompositeExistsStoreErrorFallsThrough(t *testing.T) {
	store := newMockStore()
	store.existsErr = errors.New("connection refused")
	scraper := &mockScraper{exists: true}
	c := NewComposite(store, scraper)

	ok, err := c.Exists(context.Background(), "cinephile")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v, want true from scraper", ok, err)
	}
}
