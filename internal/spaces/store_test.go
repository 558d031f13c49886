package spaces

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

func TestStoreCreateAndLookup(t *testing.T) {
	s := NewStore()
	created, err := s.Create("office", 30, 20)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("empty space id")
	}

	got, err := s.Space(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Width != 30 || got.Height != 20 || got.Name != "office" {
		t.Fatalf("space = %+v", got)
	}

	if _, err := s.Space(context.Background(), "ghost"); !errors.Is(err, core.ErrSpaceNotFound) {
		t.Fatalf("err = %v, want ErrSpaceNotFound", err)
	}
}

func TestStoreCreateValidation(t *testing.T) {
	s := NewStore()
	for _, tc := range []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 10},
		{"zero height", 10, 0},
		{"negative", -1, -1},
	} {
		if _, err := s.Create(tc.name, tc.width, tc.height); err == nil {
			t.Errorf("%s: create accepted %dx%d", tc.name, tc.width, tc.height)
		}
	}
}

func TestStorePutPreservesID(t *testing.T) {
	s := NewStore()
	space, err := domain.NewSpace("ext-1", "imported", 12, 8)
	if err != nil {
		t.Fatalf("new space: %v", err)
	}
	s.Put(space)

	got, err := s.Space(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Width != 12 || got.Height != 8 {
		t.Fatalf("space = %+v", got)
	}

	// Put under the same id replaces the record.
	updated, err := domain.NewSpace("ext-1", "imported", 24, 16)
	if err != nil {
		t.Fatalf("new space: %v", err)
	}
	s.Put(updated)
	got, err = s.Space(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("lookup after put: %v", err)
	}
	if got.Width != 24 || got.Height != 16 {
		t.Fatalf("space after put = %+v", got)
	}
}

func TestStoreList(t *testing.T) {
	s := NewStore()
	if len(s.List()) != 0 {
		t.Fatal("fresh store not empty")
	}
	ids := map[domain.SpaceID]bool{}
	for i := 0; i < 3; i++ {
		sp, err := s.Create("", 10, 10)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids[sp.ID] = true
	}
	list := s.List()
	if len(list) != 3 || len(ids) != 3 {
		t.Fatalf("list size = %d, distinct ids = %d", len(list), len(ids))
	}
}
