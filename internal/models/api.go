package models

// PredictRequest is the body of POST /predict.
// FeatureNames is optional; when present it must equal the model schema.
type PredictRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

// RetrainResponse is returned by POST /retrain on success.
type RetrainResponse struct {
	Status   string `json:"status"`
	Classes  []int  `json:"classes"`
	Message  string `json:"message"`
	ModelID  string `json:"model_id"`
	Rows     int    `json:"rows"`
	Features int    `json:"features"`
}

// ErrorResponse is the error envelope used by /predict and /retrain.
type ErrorResponse struct {
	Status           string   `json:"status"`
	Error            string   `json:"error"`
	Suggestion       string   `json:"suggestion,omitempty"`
	ExpectedFeatures []string `json:"expected_features,omitempty"`
}

// ModelInfo describes the currently served model.
type ModelInfo struct {
	ID           string   `json:"id"`
	TrainedAt    string   `json:"trained_at"`
	Rows         int      `json:"rows"`
	Classes      []int    `json:"classes"`
	FeatureNames []string `json:"feature_names"`
}
