// internal/workers/query/execute-search/models.go
package executesearch

import (
	"es-query-studio/internal/common/database"
	compilequery "es-query-studio/internal/workers/query/compile-query"
)

type Input struct {
	compilequery.Input
	GenerateQuestions bool `json:"generateQuestions,omitempty"`
}

type Output struct {
	Hits            []database.Hit         `json:"hits"`
	TotalHits       int64                  `json:"totalHits"`
	MaxScore        float64                `json:"maxScore"`
	Took            int64                  `json:"took"` // milliseconds
	TimedOut        bool                   `json:"timedOut"`
	Aggregations    map[string]interface{} `json:"aggregations,omitempty"`
	Query           map[string]interface{} `json:"query"`
	Questions       []string               `json:"questions,omitempty"`
	QuestionsStatus string                 `json:"questionsStatus,omitempty"` // set only when questions were requested
}

// Values of Output.QuestionsStatus.
const (
	QuestionsGenerated     = "generated"
	QuestionsFailed        = "failed"
	QuestionsNotConfigured = "not_configured"
)
