package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventTransferSettled    = "engine.transfer_settled"
	EventLinkCreated        = "link.created"
	EventLinkFunded         = "link.funded"
	EventLinkClaimed        = "link.claimed"
	EventLinkClaimFailed    = "link.claim_failed"
	EventLinkClaimAttempted = "link.claim_attempted"
)
