// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package models

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"The Godfather", "the-godfather"},
		{"Blade Runner 2049", "blade-runner-2049"},
		{"WALL·E", "wall-e"},
		{"  Spaced   Out  ", "spaced-out"},
		{"Amélie", "amélie"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.title); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestMeanRating(t *testing.T) {
	empty := UserSnapshot{}
	if got := empty.MeanRating(); got != 0 {
		t.Errorf("empty snapshot mean = %v, want 0", got)
	}

	s := UserSnapshot{Ratings: []RatingEntry{
		{Slug: "a", Rating: 5.0},
		{Slug: "b", Rating: 4.0},
		{Slug: "c", Rating: 3.0},
	}}
	if got := s.MeanRating(); got != 4.0 {
		t.Errorf("mean = %v, want 4.0", got)
	}
}

func TestRatedSet(t *testing.T) {
	s := UserSnapshot{Ratings: []RatingEntry{
		{Slug: "a"}, {Slug: "b"},
	}}
	set := s.RatedSet()
	if len(set) != 2 {
		t.Fatalf("set size = %d, want 2", len(set))
	}
	if _, ok := set["a"]; !ok {
		t.Error("slug a missing from set")
	}
	if _, ok := set["z"]; ok {
		t.Error("unexpected slug z in set")
	}
}
