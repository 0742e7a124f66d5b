package domain

// RequestStatus is the workflow state of a marketing request.
type RequestStatus string

const (
	RequestDraft         RequestStatus = "DRAFT"
	RequestPendingReview RequestStatus = "PENDING_REVIEW"
	RequestOpen          RequestStatus = "OPEN"
	RequestAwarded       RequestStatus = "AWARDED"
	RequestClosed        RequestStatus = "CLOSED"
	RequestRejected      RequestStatus = "REJECTED"
)

// ProposalStatus is the workflow state of an agent proposal.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "PENDING"
	ProposalAccepted  ProposalStatus = "ACCEPTED"
	ProposalDeclined  ProposalStatus = "DECLINED"
	ProposalWithdrawn ProposalStatus = "WITHDRAWN"
	ProposalExpired   ProposalStatus = "EXPIRED"
)

// SeriousnessTier classifies the owner's commitment level.
type SeriousnessTier string

const (
	TierStandard   SeriousnessTier = "STANDARD"
	TierSerious    SeriousnessTier = "SERIOUS"
	TierEnterprise SeriousnessTier = "ENTERPRISE"
)

// RequestTransitions enumerates every legal request status transition.
// CLOSED and REJECTED are terminal. AWARDED may revert to OPEN when the
// awarded proposal is withdrawn or declined.
var RequestTransitions = map[RequestStatus][]RequestStatus{
	RequestDraft:         {RequestPendingReview, RequestOpen, RequestClosed, RequestRejected},
	RequestPendingReview: {RequestOpen, RequestClosed, RequestRejected},
	RequestOpen:          {RequestAwarded, RequestClosed, RequestRejected},
	RequestAwarded:       {RequestOpen, RequestClosed, RequestRejected},
	RequestClosed:        {},
	RequestRejected:      {},
}

// ProposalTransitions enumerates every legal proposal status transition.
// An ACCEPTED proposal may still be withdrawn or declined, which reverts
// the award on the request side.
var ProposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalPending:   {ProposalAccepted, ProposalDeclined, ProposalWithdrawn, ProposalExpired},
	ProposalAccepted:  {ProposalDeclined, ProposalWithdrawn},
	ProposalDeclined:  {},
	ProposalWithdrawn: {},
	ProposalExpired:   {},
}

// ValidRequestStatus reports whether s names a known request status.
func ValidRequestStatus(s RequestStatus) bool {
	_, ok := RequestTransitions[s]
	return ok
}

// ValidProposalStatus reports whether s names a known proposal status.
func ValidProposalStatus(s ProposalStatus) bool {
	_, ok := ProposalTransitions[s]
	return ok
}

// ValidSeriousnessTier reports whether t names a known seriousness tier.
func ValidSeriousnessTier(t SeriousnessTier) bool {
	switch t {
	case TierStandard, TierSerious, TierEnterprise:
		return true
	}
	return false
}

// CanTransitionRequest reports whether a request may move from one status to another.
func CanTransitionRequest(from, to RequestStatus) bool {
	for _, allowed := range RequestTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionProposal reports whether a proposal may move from one status to another.
func CanTransitionProposal(from, to ProposalStatus) bool {
	for _, allowed := range ProposalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TerminalRequestStatus reports whether the status admits no further transitions.
func TerminalRequestStatus(s RequestStatus) bool {
	return ValidRequestStatus(s) && len(RequestTransitions[s]) == 0
}

// TerminalProposalStatus reports whether the status admits no further transitions.
func TerminalProposalStatus(s ProposalStatus) bool {
	return ValidProposalStatus(s) && len(ProposalTransitions[s]) == 0
}
