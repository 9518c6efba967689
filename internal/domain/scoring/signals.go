package scoring

// Signal types known to the default tables. The taxonomy is open: anything
// else is ignored by the engine.
const (
	FundingRaised          = "funding_raised"
	JobPostedEngineering   = "job_posted_engineering"
	JobPostedInfra         = "job_posted_infra"
	HeadcountGrowth        = "headcount_growth"
	LaunchMajor            = "launch_major"
	APILaunched            = "api_launched"
	ComplianceMentioned    = "compliance_mentioned"
	EnterpriseFeature      = "enterprise_feature"
	AIFeatureLaunched      = "ai_feature_launched"
	MultiRegionExpansion   = "multi_region_expansion"
	RegulatoryDeadline     = "regulatory_deadline"
	EnterpriseCustomer     = "enterprise_customer"
	RevenueMilestone       = "revenue_milestone"
	FounderUrgencyLanguage = "founder_urgency_language"
	CTORolePosted          = "cto_role_posted"
	FractionalRequest      = "fractional_request"
	AdvisorRequest         = "advisor_request"
	NoCTODetected          = "no_cto_detected"
	CTOHired               = "cto_hired"
)

// Suppressor labels recorded in the explain trace.
const (
	SuppressorCompanyStatus  = "company_status_suppressed"
	SuppressorCTOHiredRecent = "cto_hired_within_60d"
	SuppressorCTOHired       = "cto_hired_within_180d"
)
