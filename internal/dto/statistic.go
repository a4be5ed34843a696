package dto

// StatisticsQuery selects the aggregate to report on. OrgUnitCode is
// optional for scoped actors (defaults to their own unit).
type StatisticsQuery struct {
	OrgUnitCode string
	Period      string
}

// StatisticsResponse reports the registered aggregate for a period and
// the registration percentage against the previous period.
type StatisticsResponse struct {
	OrgUnitCode     string   `json:"orgUnitCode"`
	Period          string   `json:"period"`
	PreviousPeriod  string   `json:"previousPeriod"`
	Count           int      `json:"count"`
	PreviousCount   int      `json:"previousCount"`
	RegistrationPct *float64 `json:"registrationPct,omitempty"`
}
