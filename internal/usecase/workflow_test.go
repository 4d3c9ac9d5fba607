package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/opsdocs/signoff/internal/domain"
)

func pipelineDoc(t *testing.T, e *env) domain.Document {
	t.Helper()
	return mustCreate(t, e, CreateDocumentInput{
		Title:   "Pipeline doc",
		Version: "1.0",
		Contributors: []ContributorInput{
			{UserID: alice.ID, Team: domain.TeamAuthors},
			{UserID: bob.ID, Team: domain.TeamVerifiers},
			{UserID: carol.ID, Team: domain.TeamValidators},
		},
	})
}

func TestPublishNotifiesAuthors(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)

	published, err := e.workflow.Publish(context.Background(), owner, doc.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != domain.StatusAuthorReview {
		t.Fatalf("expected author_review, got %s", published.Status)
	}

	if got := e.notifier.to(alice.ID); len(got) != 1 || got[0].Event.Kind != domain.EventDocumentPublished {
		t.Fatalf("author not notified: %+v", got)
	}
	if got := e.notifier.to(bob.ID); len(got) != 0 {
		t.Fatalf("verifier notified too early: %+v", got)
	}
}

func TestSignAdvancesAndNotifiesNextTeam(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)
	ctx := context.Background()
	if _, err := e.workflow.Publish(ctx, owner, doc.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	signed, err := e.workflow.Sign(ctx, alice, doc.ID, "", "payload", SignContext{IPAddress: "10.0.0.1", UserAgent: "test"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.Status != domain.StatusVerifierReview {
		t.Fatalf("expected verifier_review, got %s", signed.Status)
	}

	sigs, err := e.document.Signatures(ctx, owner, doc.ID)
	if err != nil {
		t.Fatalf("signatures: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Type != domain.SignatureTypeAuthor || sigs[0].IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected ledger: %+v", sigs)
	}

	if got := e.notifier.to(bob.ID); len(got) == 0 {
		t.Fatal("verifier window opened without notification")
	}

	var sawAdvance bool
	for _, kind := range e.activity.kinds() {
		if kind == domain.EventStageAdvanced {
			sawAdvance = true
		}
	}
	if !sawAdvance {
		t.Fatal("expected a stage advance event")
	}
}

func TestSignRequiresPayload(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)
	ctx := context.Background()
	e.workflow.Publish(ctx, owner, doc.ID)

	_, err := e.workflow.Sign(ctx, alice, doc.ID, "", "", SignContext{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSignTwiceConflicts(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := mustCreate(t, e, CreateDocumentInput{
		Title:   "Doc",
		Version: "1.0",
		Contributors: []ContributorInput{
			{UserID: alice.ID, Team: domain.TeamAuthors},
			{UserID: bob.ID, Team: domain.TeamAuthors},
		},
	})
	ctx := context.Background()
	e.workflow.Publish(ctx, owner, doc.ID)

	if _, err := e.workflow.Sign(ctx, alice, doc.ID, "", "payload", SignContext{}); err != nil {
		t.Fatalf("first sign: %v", err)
	}
	_, err := e.workflow.Sign(ctx, alice, doc.ID, "", "payload", SignContext{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	sigs, _ := e.document.Signatures(ctx, owner, doc.ID)
	if len(sigs) != 1 {
		t.Fatalf("duplicate sign must not append to the ledger, got %d rows", len(sigs))
	}
}

func TestConcurrentSignsAdvanceOnce(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := mustCreate(t, e, CreateDocumentInput{
		Title:   "Doc",
		Version: "1.0",
		Contributors: []ContributorInput{
			{UserID: alice.ID, Team: domain.TeamAuthors},
			{UserID: bob.ID, Team: domain.TeamAuthors},
			{UserID: carol.ID, Team: domain.TeamVerifiers},
		},
	})
	ctx := context.Background()
	if _, err := e.workflow.Publish(ctx, owner, doc.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, signer := range []domain.User{alice, bob} {
		wg.Add(1)
		go func(i int, signer domain.User) {
			defer wg.Done()
			_, errs[i] = e.workflow.Sign(ctx, signer, doc.ID, "", "payload", SignContext{})
		}(i, signer)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("sign %d: %v", i, err)
		}
	}

	current, err := e.docs.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != domain.StatusVerifierReview {
		t.Fatalf("expected verifier_review, got %s", current.Status)
	}
	sigs, _ := e.document.Signatures(ctx, owner, doc.ID)
	if len(sigs) != 2 {
		t.Fatalf("expected both signatures in the ledger, got %d rows", len(sigs))
	}

	e.activity.mu.Lock()
	advances := 0
	for _, ev := range e.activity.events {
		if ev.Kind == domain.EventStageAdvanced && ev.Stage != nil && ev.Stage.From == domain.StatusAuthorReview {
			advances++
		}
	}
	e.activity.mu.Unlock()
	if advances != 1 {
		t.Fatalf("expected exactly one advance out of author_review, got %d", advances)
	}
}

type conflictDocs struct {
	*memDocs
}

func (c *conflictDocs) Update(context.Context, string, func(*domain.Document) (Effects, error)) (domain.Document, error) {
	return domain.Document{}, domain.ConflictError{Resource: "document"}
}

func TestSignSurfacesRevisionConflict(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)
	ctx := context.Background()
	if _, err := e.workflow.Publish(ctx, owner, doc.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conflicting := &conflictDocs{memDocs: e.docs}
	perm := NewPermissionUsecase(e.perms, conflicting, e.notifier, e.activity)
	workflow := NewWorkflowUsecase(conflicting, perm, e.notifier, e.activity)

	_, err := workflow.Sign(ctx, alice, doc.ID, "", "payload", SignContext{})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestDelegatedSignRequiresAdmin(t *testing.T) {
	e := newEnv(owner, alice, bob)
	doc := mustCreate(t, e, CreateDocumentInput{
		Title:   "Doc",
		Version: "1.0",
		Contributors: []ContributorInput{
			{UserID: alice.ID, Team: domain.TeamAuthors},
			{UserID: bob.ID, Team: domain.TeamAuthors},
		},
	})
	ctx := context.Background()
	e.workflow.Publish(ctx, owner, doc.ID)

	if _, err := e.workflow.Sign(ctx, bob, doc.ID, alice.ID, "wet ink", SignContext{}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	signed, err := e.workflow.Sign(ctx, owner, doc.ID, alice.ID, "wet ink", SignContext{})
	if err != nil {
		t.Fatalf("delegated sign by creator: %v", err)
	}
	if m := signed.Member(alice.ID, domain.TeamAuthors); m == nil || m.Status != domain.SignatureStatusSigned {
		t.Fatalf("delegated sign not recorded: %+v", signed.Contributors)
	}
}

func TestRejectStallsAndNotifiesCreator(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)
	ctx := context.Background()
	e.workflow.Publish(ctx, owner, doc.ID)

	rejected, err := e.workflow.Reject(ctx, alice, doc.ID, "section 3 is wrong")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.StatusAuthorReview {
		t.Fatalf("rejection must not advance, got %s", rejected.Status)
	}
	if m := rejected.Member(alice.ID, domain.TeamAuthors); m == nil || m.Status != domain.SignatureStatusRejected || m.RejectReason == "" {
		t.Fatalf("rejection not recorded: %+v", rejected.Contributors)
	}

	sigs, _ := e.document.Signatures(ctx, owner, doc.ID)
	if len(sigs) != 0 {
		t.Fatalf("rejection must not write a signature row, got %d", len(sigs))
	}
	if got := e.notifier.to(owner.ID); len(got) == 0 {
		t.Fatal("creator not notified of rejection")
	}
}

func TestArchiveRequiresApproved(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)
	ctx := context.Background()

	if _, err := e.workflow.Archive(ctx, owner, doc.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestArchiveApprovedDocument(t *testing.T) {
	e := newEnv(owner, alice)
	doc := approvedDoc(t, e)

	archived, err := e.workflow.Archive(context.Background(), owner, doc.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.Status != domain.StatusArchived {
		t.Fatalf("expected archived, got %s", archived.Status)
	}
}

func TestResetRestartsCycle(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)
	ctx := context.Background()
	e.workflow.Publish(ctx, owner, doc.ID)
	if _, err := e.workflow.Sign(ctx, alice, doc.ID, "", "payload", SignContext{}); err != nil {
		t.Fatalf("sign: %v", err)
	}

	reset, err := e.workflow.Reset(ctx, owner, doc.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Status != domain.StatusDraft {
		t.Fatalf("expected draft after reset, got %s", reset.Status)
	}
	// Signed contributors keep their status; the ledger keeps the row.
	if m := reset.Member(alice.ID, domain.TeamAuthors); m == nil || m.Status != domain.SignatureStatusSigned {
		t.Fatalf("reset must keep terminal statuses: %+v", reset.Contributors)
	}
	sigs, _ := e.document.Signatures(ctx, owner, doc.ID)
	if len(sigs) != 1 {
		t.Fatalf("reset must keep the signature ledger, got %d rows", len(sigs))
	}
}

func TestResetRequiresAdmin(t *testing.T) {
	e := newEnv(owner, alice, bob, carol)
	doc := pipelineDoc(t, e)
	ctx := context.Background()
	e.workflow.Publish(ctx, owner, doc.ID)

	if _, err := e.workflow.Reset(ctx, alice, doc.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}
