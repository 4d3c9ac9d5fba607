package domain

import "time"

// StatusChange is one transition the state machine performed.
type StatusChange struct {
	From DocumentStatus
	To   DocumentStatus
}

// Publish moves a draft into author review. It requires at least one author
// and opens the signature window: every contributor still in joined flips to
// pending.
func Publish(doc *Document, now time.Time) error {
	if doc.Status != StatusDraft {
		return InvalidTransitionError{Status: doc.Status, Detail: "only a draft can be published"}
	}
	if len(doc.Team(TeamAuthors)) == 0 {
		return InvalidTransitionError{Status: doc.Status, Detail: "document has no authors"}
	}
	for i := range doc.Contributors {
		if doc.Contributors[i].Status == SignatureStatusJoined {
			doc.Contributors[i].Status = SignatureStatusPending
		}
	}
	doc.Status = StatusAuthorReview
	doc.UpdatedAt = now
	return nil
}

// Sign marks the caller's contributor row signed. The caller must be a
// pending member of the team currently under review.
func Sign(doc *Document, userID string, now time.Time) error {
	team, ok := ActiveTeam(doc.Status)
	if !ok {
		return InvalidTransitionError{Status: doc.Status, Detail: "document is not under review"}
	}
	member := doc.Member(userID, team)
	if member == nil {
		return PermissionDeniedError{Required: LevelSign}
	}
	if member.Terminal() {
		return InvalidTransitionError{Status: doc.Status, Detail: "contributor already " + string(member.Status)}
	}
	member.Status = SignatureStatusSigned
	member.SignedAt = &now
	doc.UpdatedAt = now
	return nil
}

// Reject marks the caller's contributor row rejected, halting automatic
// advancement. No signature record accompanies a rejection.
func Reject(doc *Document, userID, reason string, now time.Time) error {
	team, ok := ActiveTeam(doc.Status)
	if !ok {
		return InvalidTransitionError{Status: doc.Status, Detail: "document is not under review"}
	}
	member := doc.Member(userID, team)
	if member == nil {
		return PermissionDeniedError{Required: LevelSign}
	}
	if member.Terminal() {
		return InvalidTransitionError{Status: doc.Status, Detail: "contributor already " + string(member.Status)}
	}
	member.Status = SignatureStatusRejected
	member.RejectReason = reason
	doc.UpdatedAt = now
	return nil
}

// Advance evaluates team-complete and stage-advance transitions until the
// document settles. It must run inside the same atomic unit as the signature
// write that may have triggered it. Returned changes are in firing order.
func Advance(doc *Document, now time.Time) []StatusChange {
	var changes []StatusChange
	for {
		next, ok := evaluateOnce(doc, now)
		if !ok {
			return changes
		}
		changes = append(changes, StatusChange{From: doc.Status, To: next})
		doc.Status = next
		doc.UpdatedAt = now
		if next == StatusApproved {
			doc.ApprovedAt = &now
		}
	}
}

func evaluateOnce(doc *Document, now time.Time) (DocumentStatus, bool) {
	switch doc.Status {
	case StatusAuthorReview, StatusVerifierReview, StatusValidatorReview:
		team, _ := ActiveTeam(doc.Status)
		if !teamComplete(doc.Team(team)) {
			return "", false
		}
		switch doc.Status {
		case StatusAuthorReview:
			return StatusAuthorSigned, true
		case StatusVerifierReview:
			return StatusVerifierSigned, true
		default:
			return StatusApproved, true
		}
	case StatusAuthorSigned:
		openWindow(doc, TeamVerifiers)
		return StatusVerifierReview, true
	case StatusVerifierSigned:
		openWindow(doc, TeamValidators)
		return StatusValidatorReview, true
	default:
		return "", false
	}
}

// teamComplete holds when the team is non-empty, every member signed, and
// none rejected.
func teamComplete(members []Contributor) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if m.Status != SignatureStatusSigned {
			return false
		}
	}
	return true
}

func openWindow(doc *Document, team Team) {
	for i := range doc.Contributors {
		if doc.Contributors[i].Team == team && doc.Contributors[i].Status == SignatureStatusJoined {
			doc.Contributors[i].Status = SignatureStatusPending
		}
	}
}

// Archive retires an approved document. Manual and permission gated, never
// automatic.
func Archive(doc *Document, now time.Time) error {
	if doc.Status != StatusApproved {
		return InvalidTransitionError{Status: doc.Status, Detail: "only an approved document can be archived"}
	}
	doc.Status = StatusArchived
	doc.UpdatedAt = now
	return nil
}

// Reset returns a non-archived document to draft. Pending and rejected
// contributors revert to joined so a new cycle can resolve the objection;
// signed contributors keep their status, and signature rows are untouched
// either way.
func Reset(doc *Document, now time.Time) error {
	if doc.Status == StatusArchived {
		return InvalidTransitionError{Status: doc.Status, Detail: "archived is terminal"}
	}
	if doc.Status == StatusDraft {
		return InvalidTransitionError{Status: doc.Status, Detail: "document is already a draft"}
	}
	for i := range doc.Contributors {
		if doc.Contributors[i].Status != SignatureStatusSigned {
			doc.Contributors[i].Status = SignatureStatusJoined
			doc.Contributors[i].RejectReason = ""
		}
	}
	doc.Status = StatusDraft
	doc.ApprovedAt = nil
	doc.UpdatedAt = now
	return nil
}

// Join adds a membership row, status joined while the document is a draft and
// pending once published.
func Join(doc *Document, user User, team Team, invitedAt, now time.Time) error {
	if doc.Member(user.ID, team) != nil {
		return DuplicateMembershipError{UserID: user.ID, Team: team}
	}
	status := SignatureStatusJoined
	if doc.Status != StatusDraft {
		status = SignatureStatusPending
	}
	doc.Contributors = append(doc.Contributors, Contributor{
		UserID:    user.ID,
		Name:      user.Name,
		Team:      team,
		Status:    status,
		InvitedAt: invitedAt,
	})
	doc.UpdatedAt = now
	return nil
}
