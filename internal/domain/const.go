package domain

const (
	ActorCtxKey = "signoff-actor"
)

// DocumentStatus is the stage a document occupies in the review pipeline.
type DocumentStatus string

const (
	StatusDraft           DocumentStatus = "draft"
	StatusAuthorReview    DocumentStatus = "author_review"
	StatusAuthorSigned    DocumentStatus = "author_signed"
	StatusVerifierReview  DocumentStatus = "verifier_review"
	StatusVerifierSigned  DocumentStatus = "verifier_signed"
	StatusValidatorReview DocumentStatus = "validator_review"
	StatusApproved        DocumentStatus = "approved"
	StatusArchived        DocumentStatus = "archived"
)

var statusOrder = map[DocumentStatus]int{
	StatusDraft:           0,
	StatusAuthorReview:    1,
	StatusAuthorSigned:    2,
	StatusVerifierReview:  3,
	StatusVerifierSigned:  4,
	StatusValidatorReview: 5,
	StatusApproved:        6,
	StatusArchived:        7,
}

// StatusRank returns the position of a status in the forward order, or -1 for
// an unknown value.
func StatusRank(s DocumentStatus) int {
	rank, ok := statusOrder[s]
	if !ok {
		return -1
	}
	return rank
}

func IsValidStatus(s DocumentStatus) bool {
	_, ok := statusOrder[s]
	return ok
}

// Team partitions contributors by review order.
type Team string

const (
	TeamAuthors    Team = "authors"
	TeamVerifiers  Team = "verifiers"
	TeamValidators Team = "validators"
)

func IsValidTeam(t Team) bool {
	switch t {
	case TeamAuthors, TeamVerifiers, TeamValidators:
		return true
	default:
		return false
	}
}

// ActiveTeam returns the team whose signatures gate advancement at the given
// status. The second return is false outside review stages.
func ActiveTeam(s DocumentStatus) (Team, bool) {
	switch s {
	case StatusAuthorReview:
		return TeamAuthors, true
	case StatusVerifierReview:
		return TeamVerifiers, true
	case StatusValidatorReview:
		return TeamValidators, true
	default:
		return "", false
	}
}

// SignatureStatus is the per-contributor signing state on one document.
type SignatureStatus string

const (
	SignatureStatusJoined   SignatureStatus = "joined"
	SignatureStatusPending  SignatureStatus = "pending"
	SignatureStatusSigned   SignatureStatus = "signed"
	SignatureStatusRejected SignatureStatus = "rejected"
)

// SignatureType is the role under which a signature record was produced. It is
// derived from the contributor's team, never chosen by the caller.
type SignatureType string

const (
	SignatureTypeAuthor    SignatureType = "author"
	SignatureTypeVerifier  SignatureType = "verifier"
	SignatureTypeValidator SignatureType = "validator"
)

// TeamSignatureType maps a team to the signature type its members produce.
func TeamSignatureType(t Team) SignatureType {
	switch t {
	case TeamAuthors:
		return SignatureTypeAuthor
	case TeamVerifiers:
		return SignatureTypeVerifier
	case TeamValidators:
		return SignatureTypeValidator
	default:
		return ""
	}
}

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// PermissionLevel is a totally ordered access level.
type PermissionLevel string

const (
	LevelNone  PermissionLevel = ""
	LevelRead  PermissionLevel = "read"
	LevelWrite PermissionLevel = "write"
	LevelSign  PermissionLevel = "sign"
	LevelAdmin PermissionLevel = "admin"
)

var levelOrder = map[PermissionLevel]int{
	LevelNone:  0,
	LevelRead:  1,
	LevelWrite: 2,
	LevelSign:  3,
	LevelAdmin: 4,
}

// LevelRank returns the position of a level in the ordering, or -1 for an
// unknown value.
func LevelRank(l PermissionLevel) int {
	rank, ok := levelOrder[l]
	if !ok {
		return -1
	}
	return rank
}

func IsValidLevel(l PermissionLevel) bool {
	switch l {
	case LevelRead, LevelWrite, LevelSign, LevelAdmin:
		return true
	default:
		return false
	}
}

// MaxLevel returns the higher of two levels.
func MaxLevel(a, b PermissionLevel) PermissionLevel {
	if LevelRank(a) >= LevelRank(b) {
		return a
	}
	return b
}

// Satisfies reports whether holding level `have` grants everything `want`
// grants.
func Satisfies(have, want PermissionLevel) bool {
	return LevelRank(have) >= LevelRank(want) && LevelRank(have) > 0
}
