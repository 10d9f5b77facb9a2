package model

import "time"

// DescriptionUnavailable is returned when a disease has no description row
const DescriptionUnavailable = "Description not available."

// NoPrediction is the description used when nothing could be ranked
const NoPrediction = "No description available."

// Extraction is the result of scanning free text for symptoms
type Extraction struct {
	Symptoms []string          `json:"symptoms"` // Canonical, deduplicated, sorted
	Entities map[string]string `json:"entities"` // Label -> text, informational only
}

// Prediction is one ranked disease with its ensemble probability
type Prediction struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"` // In [0,1], rounded to 3 decimals
}

// Details carries the knowledge attached to a disease
type Details struct {
	Description string   `json:"description"`
	Precautions []string `json:"precautions"`
}

// Response is the complete diagnosis for one input text
type Response struct {
	RequestID       string       `json:"request_id"`
	CreatedAt       time.Time    `json:"created_at"`
	InputText       string       `json:"input_text"`
	Extracted       Extraction   `json:"extracted"`
	Predictions     []Prediction `json:"predictions"`
	Details         Details      `json:"details"`
	RiskScore       float64      `json:"risk_score"` // In [0,10]
	Recommendations string       `json:"recommendations"`
	ModelVersion    string       `json:"model_version,omitempty"`
}

// TopDisease returns the highest ranked disease, or "" when nothing was predicted
func (r *Response) TopDisease() string {
	if len(r.Predictions) == 0 {
		return ""
	}
	return r.Predictions[0].Disease
}

// RiskContribution is one symptom's share of the risk score
type RiskContribution struct {
	Symptom string `json:"symptom"`
	Weight  int    `json:"weight"`
	Known   bool   `json:"known"`
}
