package index

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/aishow/internal/apperr"
	"github.com/starford/aishow/internal/models"
)

func TestParseVisibility(t *testing.T) {
	tests := []struct {
		in   string
		want Visibility
		ok   bool
	}{
		{"", HideRestricted, true},
		{"hide_restricted", HideRestricted, true},
		{"only_restricted", OnlyRestricted, true},
		{" show_all ", ShowAll, true},
		{"everything", "", false},
	}
	for _, tt := range tests {
		got, err := ParseVisibility(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseVisibility(%q) = %q, %v", tt.in, got, err)
		}
		if !tt.ok && !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("ParseVisibility(%q) err = %v, want ErrInvalidInput", tt.in, err)
		}
	}
}

func TestBuildImageQuery(t *testing.T) {
	q, args := buildImageQuery(ImageFilter{
		Visibility: OnlyRestricted,
		Type:       "SD",
		Keywords:   []string{"cat", "dog"},
		Limit:      5,
	})
	if !strings.Contains(q, "is_hidden = 1 AND type = ? AND (EXISTS") {
		t.Errorf("unexpected where clause: %s", q)
	}
	if strings.Count(q, "EXISTS") != 2 || !strings.Contains(q, ") OR EXISTS") {
		t.Errorf("keyword conditions should be OR'ed: %s", q)
	}
	if !strings.HasSuffix(q, "ORDER BY created_at DESC, id DESC LIMIT ?") {
		t.Errorf("unexpected tail: %s", q)
	}
	if len(args) != 4 {
		t.Errorf("args = %v", args)
	}

	q, args = buildImageQuery(ImageFilter{Visibility: ShowAll})
	if strings.Contains(q, "WHERE") || len(args) != 0 {
		t.Errorf("show_all without filters should have no WHERE: %s %v", q, args)
	}
}

func TestListImages_Filter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	catOld := insertImage(t, db, models.Image{Filename: "cat-old.png", CreatedAt: at(1)}, "cat")
	dog := insertImage(t, db, models.Image{Filename: "dog.png", CreatedAt: at(2)}, "dog", "park")
	bird := insertImage(t, db, models.Image{Filename: "bird.png", CreatedAt: at(3)}, "bird")
	hiddenCat := insertImage(t, db, models.Image{Filename: "hidden-cat.png", Hidden: true, CreatedAt: at(4)}, "cat")
	catNew := insertImage(t, db, models.Image{Filename: "cat-new.png", Type: "ComfyUI", CreatedAt: at(5)}, "cat", "dog")

	ids := func(imgs []models.Image) []int64 {
		out := make([]int64, len(imgs))
		for i, img := range imgs {
			out[i] = img.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter ImageFilter
		want   []int64
	}{
		{"any keyword hide restricted", ImageFilter{Visibility: HideRestricted, Keywords: []string{"cat", "dog"}}, []int64{catNew, dog, catOld}},
		{"only restricted", ImageFilter{Visibility: OnlyRestricted}, []int64{hiddenCat}},
		{"show all cat", ImageFilter{Visibility: ShowAll, Keywords: []string{"cat"}}, []int64{catNew, hiddenCat, catOld}},
		{"type and keyword", ImageFilter{Visibility: ShowAll, Type: "ComfyUI", Keywords: []string{"dog"}}, []int64{catNew}},
		{"keyword match is exact", ImageFilter{Visibility: ShowAll, Keywords: []string{"Cat"}}, []int64{}},
		{"paged", ImageFilter{Visibility: ShowAll, Limit: 2, Offset: 1}, []int64{hiddenCat, bird}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListImages(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(ids(got), tt.want) {
				t.Errorf("ids = %v, want %v", ids(got), tt.want)
			}
		})
	}

	all, _ := db.ListImages(ctx, ImageFilter{Visibility: ShowAll})
	if len(all[0].Keywords) != 2 {
		t.Errorf("keywords not attached: %+v", all[0])
	}
}
