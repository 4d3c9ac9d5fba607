package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/opsdocs/signoff/internal/domain"
)

// In-memory fakes implementing the repository ports. Update mirrors the
// production contract: mutate a copy, persist only on success, collect
// effect rows.
type memDocs struct {
	mu   sync.Mutex
	docs map[string]domain.Document
	sigs map[string][]domain.Signature
	vers map[string][]domain.DocumentVersion
}

func newMemDocs() *memDocs {
	return &memDocs{
		docs: map[string]domain.Document{},
		sigs: map[string][]domain.Signature{},
		vers: map[string][]domain.DocumentVersion{},
	}
}

func (m *memDocs) Create(_ context.Context, doc domain.Document, changeNote string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = cloneDoc(doc)
	m.vers[doc.ID] = append(m.vers[doc.ID], domain.DocumentVersion{
		ID:         doc.ID + "-v0",
		DocumentID: doc.ID,
		Version:    doc.Version,
		Data:       doc.Body,
		CreatedBy:  doc.CreatedBy,
		ChangeNote: changeNote,
		CreatedAt:  doc.CreatedAt,
	})
	return nil
}

func (m *memDocs) Get(_ context.Context, id string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, domain.NotFoundError{}
	}
	return cloneDoc(doc), nil
}

func (m *memDocs) Update(_ context.Context, id string, apply func(doc *domain.Document) (Effects, error)) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.docs[id]
	if !ok {
		return domain.Document{}, domain.NotFoundError{}
	}
	doc := cloneDoc(stored)
	effects, err := apply(&doc)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Revision++
	m.docs[id] = cloneDoc(doc)
	if effects.Signature != nil {
		m.sigs[id] = append(m.sigs[id], *effects.Signature)
	}
	if effects.Snapshot != nil {
		m.vers[id] = append(m.vers[id], domain.DocumentVersion{
			ID:         doc.ID + "-v" + time.Now().Format("150405.000000000"),
			DocumentID: doc.ID,
			Version:    doc.Version,
			Data:       doc.Body,
			CreatedBy:  effects.Snapshot.CreatedBy,
			ChangeNote: effects.Snapshot.ChangeNote,
			CreatedAt:  doc.UpdatedAt,
		})
	}
	return doc, nil
}

func (m *memDocs) Versions(_ context.Context, documentID string) ([]domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DocumentVersion(nil), m.vers[documentID]...), nil
}

func (m *memDocs) Signatures(_ context.Context, documentID string) ([]domain.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Signature(nil), m.sigs[documentID]...), nil
}

func cloneDoc(doc domain.Document) domain.Document {
	out := doc
	out.Contributors = append([]domain.Contributor(nil), doc.Contributors...)
	return out
}

type memInvites struct {
	mu      sync.Mutex
	byID    map[string]domain.Invitation
	docs    *memDocs
	created int
}

func newMemInvites(docs *memDocs) *memInvites {
	return &memInvites{byID: map[string]domain.Invitation{}, docs: docs}
}

func (m *memInvites) Create(_ context.Context, inv domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[inv.ID] = inv
	m.created++
	return nil
}

func (m *memInvites) Get(_ context.Context, id string) (domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return domain.Invitation{}, domain.NotFoundError{}
	}
	return inv, nil
}

func (m *memInvites) GetByToken(_ context.Context, digest string) (domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.byID {
		if inv.TokenDigest == digest {
			return inv, nil
		}
	}
	return domain.Invitation{}, domain.NotFoundError{}
}

func (m *memInvites) HasPending(_ context.Context, documentID, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.byID {
		if inv.DocumentID == documentID && inv.InvitedEmail == email && inv.Status == domain.InvitationPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memInvites) ListByDocument(_ context.Context, documentID string) ([]domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range m.byID {
		if inv.DocumentID == documentID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memInvites) Accept(ctx context.Context, digest string, user domain.User, now time.Time) (domain.Invitation, error) {
	m.mu.Lock()
	inv, err := m.consume(digest, now)
	if err != nil {
		m.mu.Unlock()
		return domain.Invitation{}, err
	}
	inv.Status = domain.InvitationAccepted
	inv.AcceptedAt = &now
	inv.InvitedUserID = &user.ID
	inv.UpdatedAt = now
	m.byID[inv.ID] = inv
	m.mu.Unlock()

	_, err = m.docs.Update(ctx, inv.DocumentID, func(doc *domain.Document) (Effects, error) {
		return Effects{}, domain.Join(doc, user, inv.Team, inv.SentAt, now)
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	return inv, nil
}

func (m *memInvites) Decline(_ context.Context, digest string, reason string, now time.Time) (domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, err := m.consume(digest, now)
	if err != nil {
		return domain.Invitation{}, err
	}
	inv.Status = domain.InvitationDeclined
	inv.DeclinedAt = &now
	inv.DeclineReason = reason
	inv.UpdatedAt = now
	m.byID[inv.ID] = inv
	return inv, nil
}

// consume enforces the single-use compare-and-swap the SQL implementation
// performs with a conditional UPDATE.
func (m *memInvites) consume(digest string, now time.Time) (domain.Invitation, error) {
	for _, inv := range m.byID {
		if inv.TokenDigest != digest {
			continue
		}
		if !inv.Actionable(now) {
			return domain.Invitation{}, domain.InvitationNotActionableError{Status: inv.Status, Expired: inv.Expired(now)}
		}
		return inv, nil
	}
	return domain.Invitation{}, domain.NotFoundError{}
}

func (m *memInvites) Cancel(_ context.Context, id string, now time.Time) (domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return domain.Invitation{}, domain.NotFoundError{}
	}
	if inv.Status != domain.InvitationPending {
		return domain.Invitation{}, domain.InvitationNotActionableError{Status: inv.Status}
	}
	inv.Status = domain.InvitationExpired
	inv.UpdatedAt = now
	m.byID[id] = inv
	return inv, nil
}

func (m *memInvites) Refresh(_ context.Context, id string, newDigest string, sentAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return domain.NotFoundError{}
	}
	inv.TokenDigest = newDigest
	inv.SentAt = sentAt
	inv.ExpiresAt = expiresAt
	inv.UpdatedAt = sentAt
	m.byID[id] = inv
	return nil
}

func (m *memInvites) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, inv := range m.byID {
		if inv.Status == domain.InvitationPending && inv.Expired(now) {
			inv.Status = domain.InvitationExpired
			inv.UpdatedAt = now
			m.byID[id] = inv
			n++
		}
	}
	return n, nil
}

type memPerms struct {
	mu     sync.Mutex
	grants map[string]domain.Permission
}

func newMemPerms() *memPerms {
	return &memPerms{grants: map[string]domain.Permission{}}
}

func permKey(documentID, userID string) string { return documentID + "/" + userID }

func (m *memPerms) Upsert(_ context.Context, p domain.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[permKey(p.DocumentID, p.UserID)] = p
	return nil
}

func (m *memPerms) Get(_ context.Context, documentID, userID string) (domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.grants[permKey(documentID, userID)]
	if !ok {
		return domain.Permission{}, domain.NotFoundError{}
	}
	return p, nil
}

func (m *memPerms) Delete(_ context.Context, documentID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, permKey(documentID, userID))
	return nil
}

func (m *memPerms) ListByDocument(_ context.Context, documentID string) ([]domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Permission
	for _, p := range m.grants {
		if p.DocumentID == documentID {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubIdentity struct {
	byID    map[string]domain.User
	byEmail map[string]domain.User
}

func newStubIdentity(users ...domain.User) *stubIdentity {
	s := &stubIdentity{byID: map[string]domain.User{}, byEmail: map[string]domain.User{}}
	for _, u := range users {
		s.byID[u.ID] = u
		s.byEmail[u.Email] = u
	}
	return s
}

func (s *stubIdentity) Resolve(_ context.Context, userID string) (domain.User, error) {
	u, ok := s.byID[userID]
	if !ok {
		return domain.User{}, domain.NotFoundError{}
	}
	return u, nil
}

func (s *stubIdentity) ResolveEmail(_ context.Context, email string) (domain.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, domain.NotFoundError{}
	}
	return u, nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (c *captureNotifier) Dispatch(_ context.Context, n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
}

func (c *captureNotifier) to(recipient string) []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Notification
	for _, n := range c.sent {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

type captureActivity struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureActivity) Record(_ context.Context, ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureActivity) kinds() []domain.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.EventKind
	for _, ev := range c.events {
		out = append(out, ev.Kind)
	}
	return out
}

// env wires the full usecase stack over the in-memory fakes.
type env struct {
	docs     *memDocs
	invites  *memInvites
	perms    *memPerms
	identity *stubIdentity
	notifier *captureNotifier
	activity *captureActivity

	document   *DocumentUsecase
	workflow   *WorkflowUsecase
	invitation *InvitationUsecase
	permission *PermissionUsecase
}

func newEnv(users ...domain.User) *env {
	e := &env{
		docs:     newMemDocs(),
		perms:    newMemPerms(),
		identity: newStubIdentity(users...),
		notifier: &captureNotifier{},
		activity: &captureActivity{},
	}
	e.invites = newMemInvites(e.docs)
	e.permission = NewPermissionUsecase(e.perms, e.docs, e.notifier, e.activity)
	e.document = NewDocumentUsecase(e.docs, e.permission, e.identity, e.activity)
	e.workflow = NewWorkflowUsecase(e.docs, e.permission, e.notifier, e.activity)
	e.invitation = NewInvitationUsecase(e.invites, e.docs, e.permission, e.identity, e.notifier, e.activity)
	return e
}
