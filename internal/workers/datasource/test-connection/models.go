// internal/workers/datasource/test-connection/models.go
package testconnection

const (
	TargetElasticsearch = "elasticsearch"
	TargetOracle        = "oracle"
	TargetAll           = "all"
)

type Input struct {
	EnvironmentID string `json:"environmentId"`
	Target        string `json:"target,omitempty"` // defaults to "all"
	Owner         string `json:"owner,omitempty"`
}

type ElasticsearchStatus struct {
	Connected   bool   `json:"connected"`
	ClusterName string `json:"clusterName,omitempty"`
	NodeName    string `json:"nodeName,omitempty"`
	Version     string `json:"version,omitempty"`
	IndexCount  int    `json:"indexCount"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
}

type OracleStatus struct {
	Connected  bool     `json:"connected"`
	TableCount int      `json:"tableCount"`
	Tables     []string `json:"tables,omitempty"`
	LatencyMs  int64    `json:"latencyMs"`
	Error      string   `json:"error,omitempty"`
}

type Output struct {
	Elasticsearch *ElasticsearchStatus `json:"elasticsearch,omitempty"`
	Oracle        *OracleStatus        `json:"oracle,omitempty"`
	Healthy       bool                 `json:"healthy"`
}
