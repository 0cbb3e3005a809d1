package domain

// ChargeAssessedEvent is the payload published on TopicChargeAssessed
// (and TopicChargeFlagged for high-risk charges) after each screening.
type ChargeAssessedEvent struct {
	Charge     *Charge     `json:"charge"`
	Assessment *Assessment `json:"assessment"`
}
