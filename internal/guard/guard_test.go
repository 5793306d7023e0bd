package guard

import (
	"errors"
	"testing"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		name          string
		limit, offset int
		wantLimit     int
		wantOffset    int
		wantErr       string
	}{
		{name: "defaults", limit: 0, offset: 0, wantLimit: 20, wantOffset: 0},
		{name: "explicit", limit: 5, offset: 10, wantLimit: 5, wantOffset: 10},
		{name: "clamped", limit: 500, offset: 0, wantLimit: 100, wantOffset: 0},
		{name: "at cap", limit: 100, offset: 0, wantLimit: 100, wantOffset: 0},
		{name: "negative limit", limit: -1, offset: 0, wantErr: "invalid_limit"},
		{name: "negative offset", limit: 0, offset: -5, wantErr: "invalid_offset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := NormalizePage(tc.limit, tc.offset)
			if tc.wantErr != "" {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) || verr.Code != tc.wantErr {
					t.Fatalf("expected %s, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if page.Limit != tc.wantLimit || page.Offset != tc.wantOffset {
				t.Fatalf("got %+v, want limit=%d offset=%d", page, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}

func TestPageFromQuery(t *testing.T) {
	page, err := PageFromQuery("", "")
	if err != nil {
		t.Fatalf("empty query: %v", err)
	}
	if page.Limit != DefaultLimit || page.Offset != 0 {
		t.Fatalf("expected defaults, got %+v", page)
	}

	if _, err := PageFromQuery("abc", ""); err == nil {
		t.Fatalf("expected error for non-numeric limit")
	}
	if _, err := PageFromQuery("", "x"); err == nil {
		t.Fatalf("expected error for non-numeric offset")
	}

	page, err = PageFromQuery("150", "30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if page.Limit != MaxLimit || page.Offset != 30 {
		t.Fatalf("expected clamped limit, got %+v", page)
	}
}

func TestListVisibility(t *testing.T) {
	if err := RequireListReadable(domain.List{Status: domain.ListStatusDeferred}); err != nil {
		t.Fatalf("deferred lists are readable: %v", err)
	}
	if err := RequireListReadable(domain.List{Status: domain.ListStatusDeleted}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("deleted lists must read as absent, got %v", err)
	}

	if err := RequireListMutable(domain.List{Status: domain.ListStatusActive}); err != nil {
		t.Fatalf("active lists are mutable: %v", err)
	}
	for _, status := range []domain.ListStatus{domain.ListStatusDeferred, domain.ListStatusDeleted} {
		if err := RequireListMutable(domain.List{Status: status}); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("%s lists must not be mutable, got %v", status, err)
		}
	}
}

func TestRequireParentUnlocked(t *testing.T) {
	if err := RequireParentUnlocked(domain.List{Status: domain.ListStatusActive}); err != nil {
		t.Fatalf("active parent: %v", err)
	}

	var cerr *domain.ConflictError
	err := RequireParentUnlocked(domain.List{Status: domain.ListStatusDeferred})
	if !errors.As(err, &cerr) || cerr.Code != "list_deferred" {
		t.Fatalf("expected list_deferred, got %v", err)
	}
	err = RequireParentUnlocked(domain.List{Status: domain.ListStatusDeleted})
	if !errors.As(err, &cerr) || cerr.Code != "list_deleted" {
		t.Fatalf("expected list_deleted, got %v", err)
	}
}

func TestTaskVisibility(t *testing.T) {
	if err := RequireTaskReadable(domain.Task{Status: domain.TaskStatusDeferred}); err != nil {
		t.Fatalf("deferred tasks are readable: %v", err)
	}
	if err := RequireTaskReadable(domain.Task{Status: domain.TaskStatusDeleted}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("deleted tasks must read as absent, got %v", err)
	}

	for _, status := range []domain.TaskStatus{domain.TaskStatusDeferred, domain.TaskStatusDeleted} {
		if err := RequireTaskMutable(domain.Task{Status: status}); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("%s tasks must not be mutable, got %v", status, err)
		}
	}
}
