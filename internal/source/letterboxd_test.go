// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func filmsHTML(films ...[3]string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, f := range films {
		fmt.Fprintf(&b, `<li class="poster-container">
			<div class="film-poster" data-film-slug=%q><img alt=%q></div>
			<p class="poster-viewingdata"><span class="rating">%s</span></p>
		</li>`, f[0], f[1], f[2])
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func newTestClient(serverURL string) *LetterboxdClient {
	return NewLetterboxdClient(
		WithBaseURL(serverURL),
		WithPageInterval(0),
	)
}

func TestParseStars(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"★★★★★", 5.0},
		{"★★★★½", 4.5},
		{"★★★", 3.0},
		{"½", 0.5},
		{"  ★★½  ", 2.5},
		{"", 0},
		{"no stars here", 0},
	}
	for _, tt := range tests {
		if got := ParseStars(tt.text); got != tt.want {
			t.Errorf("ParseStars(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cinephile/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ok, err := client.Exists(context.Background(), "cinephile")
	if err != nil || !ok {
		t.Errorf("Exists(cinephile) = %v, %v; want true, nil", ok, err)
	}

	ok, err = client.Exists(context.Background(), "ghost")
	if err != nil || ok {
		t.Errorf("Exists(ghost) = %v, %v; want false, nil", ok, err)
	}
}

func TestExistsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Exists(context.Background(), "anyone")
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Errorf("err = %v, want ErrSourceUnreachable", err)
	}
}

func TestFetchRatingsParsesFilms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cinephile/films/by/date/page/1/" {
			fmt.Fprint(w, filmsHTML(
				[3]string{"the-godfather", "The Godfather", "★★★★★"},
				[3]string{"heat", "Heat", "★★★★½"},
				[3]string{"unrated-watch", "Unrated Watch", ""},
			))
			return
		}
		fmt.Fprint(w, filmsHTML())
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	entries, err := client.FetchRatings(context.Background(), "cinephile", 5)
	if err != nil {
		t.Fatalf("FetchRatings: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (unrated skipped)", len(entries))
	}
	if entries[0].Slug != "the-godfather" || entries[0].Rating != 5.0 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Title != "Heat" || entries[1].Rating != 4.5 {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestFetchRatingsSlugFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/page/1/") {
			fmt.Fprint(w, `<html><body><ul><li class="poster-container">
				<img alt="Blade Runner 2049">
				<span class="rating">★★★★</span>
			</li></ul></body></html>`)
			return
		}
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	entries, err := client.FetchRatings(context.Background(), "cinephile", 2)
	if err != nil {
		t.Fatalf("FetchRatings: %v", err)
	}
	if len(entries) != 1 || entries[0].Slug != "blade-runner-2049" {
		t.Errorf("entries = %+v, want derived slug blade-runner-2049", entries)
	}
}

func TestFetchRatingsStopsAtPageLimit(t *testing.T) {
	var pagesServed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		fmt.Fprint(w, filmsHTML([3]string{"some-film", "Some Film", "★★★"}))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	entries, err := client.FetchRatings(context.Background(), "completionist", 3)
	if err != nil {
		t.Fatalf("FetchRatings: %v", err)
	}
	if pagesServed != 3 {
		t.Errorf("served %d pages, want 3", pagesServed)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestFetchRatingsStopsOnEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/page/1/") {
			fmt.Fprint(w, filmsHTML([3]string{"some-film", "Some Film", "★★★"}))
			return
		}
		fmt.Fprint(w, filmsHTML())
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	entries, err := client.FetchRatings(context.Background(), "casual", 5)
	if err != nil {
		t.Fatalf("FetchRatings: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

func TestFetchRatingsUserNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchRatings(context.Background(), "ghost", 5)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestFetchRatingsAllUnrated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/page/1/") {
			fmt.Fprint(w, filmsHTML([3]string{"watched-only", "Watched Only", ""}))
			return
		}
		fmt.Fprint(w, filmsHTML())
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchRatings(context.Background(), "lurker", 5)
	if !errors.Is(err, ErrEmptyRatings) {
		t.Errorf("err = %v, want ErrEmptyRatings", err)
	}
}

func TestFetchRatingsLaterPageErrorKeepsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/page/1/") {
			fmt.Fprint(w, filmsHTML([3]string{"some-film", "Some Film", "★★★★"}))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	entries, err := client.FetchRatings(context.Background(), "cinephile", 5)
	if err != nil {
		t.Fatalf("partial result should not error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

func TestFetchRatingsSendsUserAgent(t *testing.T) {
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		fmt.Fprint(w, filmsHTML())
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, _ = client.FetchRatings(context.Background(), "anyone", 1)
	if !strings.Contains(ua, "Mozilla") {
		t.Errorf("User-Agent = %q, want a browser UA", ua)
	}
}
