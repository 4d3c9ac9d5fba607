package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/opsdocs/signoff/internal/domain"
)

func TestResolveCreatorIsAdmin(t *testing.T) {
	e := newEnv(owner)
	doc := mustCreate(t, e, CreateDocumentInput{Title: "Doc", Version: "1.0"})

	level, err := e.permission.Resolve(context.Background(), doc.ID, owner.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if level != domain.LevelAdmin {
		t.Fatalf("expected admin for creator, got %s", level)
	}
}

func TestResolveContributorFloor(t *testing.T) {
	e := newEnv(owner, alice, bob)
	doc := mustCreate(t, e, CreateDocumentInput{
		Title:   "Doc",
		Version: "1.0",
		Contributors: []ContributorInput{
			{UserID: alice.ID, Team: domain.TeamAuthors},
			{UserID: bob.ID, Team: domain.TeamVerifiers},
		},
	})
	ctx := context.Background()

	// Draft: no team is active, every contributor floors at read.
	if level, _ := e.permission.Resolve(ctx, doc.ID, alice.ID); level != domain.LevelRead {
		t.Fatalf("expected read in draft, got %s", level)
	}

	if _, err := e.workflow.Publish(ctx, owner, doc.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Author review: authors floor at sign, other teams stay at read.
	if level, _ := e.permission.Resolve(ctx, doc.ID, alice.ID); level != domain.LevelSign {
		t.Fatalf("expected sign for active team, got %s", level)
	}
	if level, _ := e.permission.Resolve(ctx, doc.ID, bob.ID); level != domain.LevelRead {
		t.Fatalf("expected read for inactive team, got %s", level)
	}
}

func TestResolveNonMemberIsNone(t *testing.T) {
	e := newEnv(owner, stranger)
	doc := mustCreate(t, e, CreateDocumentInput{Title: "Doc", Version: "1.0"})

	level, err := e.permission.Resolve(context.Background(), doc.ID, stranger.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if level != domain.LevelNone {
		t.Fatalf("expected none, got %s", level)
	}
}

func TestGrantOverridesFloor(t *testing.T) {
	e := newEnv(owner, stranger)
	doc := mustCreate(t, e, CreateDocumentInput{Title: "Doc", Version: "1.0"})
	ctx := context.Background()

	if _, err := e.permission.Grant(ctx, owner, doc.ID, stranger.ID, domain.LevelWrite); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if level, _ := e.permission.Resolve(ctx, doc.ID, stranger.ID); level != domain.LevelWrite {
		t.Fatalf("expected write after grant, got %s", level)
	}

	// Re-grant replaces, never stacks.
	if _, err := e.permission.Grant(ctx, owner, doc.ID, stranger.ID, domain.LevelRead); err != nil {
		t.Fatalf("re-grant: %v", err)
	}
	if level, _ := e.permission.Resolve(ctx, doc.ID, stranger.ID); level != domain.LevelRead {
		t.Fatalf("expected read after downgrade, got %s", level)
	}
}

func TestGrantRequiresAdmin(t *testing.T) {
	e := newEnv(owner, alice, stranger)
	doc := mustCreate(t, e, CreateDocumentInput{
		Title:        "Doc",
		Version:      "1.0",
		Contributors: []ContributorInput{{UserID: alice.ID, Team: domain.TeamAuthors}},
	})

	_, err := e.permission.Grant(context.Background(), alice, doc.ID, stranger.ID, domain.LevelRead)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestGrantValidatesLevel(t *testing.T) {
	e := newEnv(owner, stranger)
	doc := mustCreate(t, e, CreateDocumentInput{Title: "Doc", Version: "1.0"})

	_, err := e.permission.Grant(context.Background(), owner, doc.ID, stranger.ID, domain.PermissionLevel("root"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRevokeFallsBackToMembershipFloor(t *testing.T) {
	e := newEnv(owner, alice)
	doc := mustCreate(t, e, CreateDocumentInput{
		Title:        "Doc",
		Version:      "1.0",
		Contributors: []ContributorInput{{UserID: alice.ID, Team: domain.TeamAuthors}},
	})
	ctx := context.Background()

	if _, err := e.permission.Grant(ctx, owner, doc.ID, alice.ID, domain.LevelAdmin); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := e.permission.Revoke(ctx, owner, doc.ID, alice.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if level, _ := e.permission.Resolve(ctx, doc.ID, alice.ID); level != domain.LevelRead {
		t.Fatalf("expected membership floor after revoke, got %s", level)
	}
}
