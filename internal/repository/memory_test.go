package repository

import (
	"context"
	"testing"
	"time"

	"quizclash/internal/model"
)

func TestMemorySessionRepoDuplicateCreate(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	s := &model.Session{ID: "s1", Phase: model.PhaseLobby, CreatedAt: time.Now()}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, s); err != ErrDuplicateKey {
		t.Errorf("second Create err = %v, want ErrDuplicateKey", err)
	}
}

func TestMemorySessionRepoCopiesDocuments(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	deadline := time.Now().Add(time.Minute)
	s := &model.Session{ID: "s1", Phase: model.PhaseInProgress, RoundDeadline: &deadline}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Phase = model.PhaseResolved
	*got.RoundDeadline = time.Time{}

	again, _ := repo.GetByID(ctx, "s1")
	if again.Phase != model.PhaseInProgress {
		t.Error("mutating a returned session leaked into the store")
	}
	if again.RoundDeadline == nil || !again.RoundDeadline.Equal(deadline) {
		t.Error("mutating a returned deadline leaked into the store")
	}
}

func TestMemorySessionRepoGetMissing(t *testing.T) {
	repo := NewMemorySessionRepo()
	got, err := repo.GetByID(context.Background(), "nope")
	if err != nil || got != nil {
		t.Errorf("GetByID missing = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestMemoryMemberRepoListSortedBySeq(t *testing.T) {
	repo := NewMemoryMemberRepo()
	ctx := context.Background()

	for _, m := range []*model.Membership{
		{SessionID: "s1", ConnID: "c3", Username: "Carol", Seq: 3},
		{SessionID: "s1", ConnID: "c1", Username: "Alice", Seq: 1},
		{SessionID: "s1", ConnID: "c2", Username: "Bob", Seq: 2},
		{SessionID: "other", ConnID: "c9", Username: "Zed", Seq: 1},
	} {
		if err := repo.Insert(ctx, m); err != nil {
			t.Fatalf("Insert %s: %v", m.Username, err)
		}
	}

	members, err := repo.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	want := []string{"Alice", "Bob", "Carol"}
	if len(members) != len(want) {
		t.Fatalf("members = %d, want %d", len(members), len(want))
	}
	for i, name := range want {
		if members[i].Username != name {
			t.Errorf("members[%d] = %q, want %q", i, members[i].Username, name)
		}
	}
}

func TestMemoryMemberRepoDeleteBySession(t *testing.T) {
	repo := NewMemoryMemberRepo()
	ctx := context.Background()

	repo.Insert(ctx, &model.Membership{SessionID: "s1", ConnID: "c1", Seq: 1})
	repo.Insert(ctx, &model.Membership{SessionID: "s1", ConnID: "c2", Seq: 2})
	repo.Insert(ctx, &model.Membership{SessionID: "s2", ConnID: "c1", Seq: 1})

	if err := repo.DeleteBySession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteBySession: %v", err)
	}

	members, _ := repo.ListBySession(ctx, "s1")
	if len(members) != 0 {
		t.Errorf("s1 members after delete = %d, want 0", len(members))
	}
	members, _ = repo.ListBySession(ctx, "s2")
	if len(members) != 1 {
		t.Errorf("s2 members = %d, want 1 (untouched)", len(members))
	}
}
