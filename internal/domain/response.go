package domain

// Response is a completed survey response: question code to answer value.
type Response struct {
	SurveyID   int               `json:"surveyId"`
	ResponseID int               `json:"responseId"`
	Answers    map[string]string `json:"answers"`
}

// Question is the metadata the pipeline needs about one survey question.
type Question struct {
	ID    int    `json:"qid"`
	Code  string `json:"title"`
	Type  string `json:"type"`
	Text  string `json:"question,omitempty"`
	Group int    `json:"gid,omitempty"`
}

// TransformContext carries per-invocation identifiers consumed by
// auto-generation transform rules. It is never persisted.
type TransformContext struct {
	SurveyID   int
	ResponseID int
	// RefPrefix is the prefix used by the auto_survey_ref rule. Defaults to
	// "SURVEY" when empty.
	RefPrefix string
}
