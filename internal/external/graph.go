package external

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Graph runs read queries against the medical knowledge graph.
type Graph interface {
	ExecuteQuery(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error)
}

// Neo4jHTTP talks to Neo4j through its HTTP transactional endpoint.
type Neo4jHTTP struct {
	baseURL  string
	database string
	auth     string
	client   *http.Client
}

// NewNeo4jHTTP creates a Neo4j client for the "neo4j" database.
func NewNeo4jHTTP(baseURL, username, password string, timeout time.Duration) *Neo4jHTTP {
	n := &Neo4jHTTP{
		baseURL:  strings.TrimRight(baseURL, "/"),
		database: "neo4j",
		client:   newHTTPClient(timeout),
	}
	if username != "" {
		n.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	}
	return n
}

type neo4jStatement struct {
	Statement  string                 `json:"statement"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type neo4jResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []interface{} `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExecuteQuery runs cypher in an auto-commit transaction and returns one map
// per row keyed by column name.
func (n *Neo4jHTTP) ExecuteQuery(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	if n.baseURL == "" {
		return nil, ErrNotConfigured
	}
	headers := map[string]string{}
	if n.auth != "" {
		headers["Authorization"] = n.auth
	}
	body := map[string]interface{}{
		"statements": []neo4jStatement{{Statement: cypher, Parameters: params}},
	}

	var out neo4jResponse
	endpoint := fmt.Sprintf("%s/db/%s/tx/commit", n.baseURL, n.database)
	if err := doJSON(ctx, n.client, http.MethodPost, endpoint, headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstream, out.Errors[0].Code, out.Errors[0].Message)
	}

	var rows []map[string]interface{}
	for _, result := range out.Results {
		for _, d := range result.Data {
			row := make(map[string]interface{}, len(result.Columns))
			for i, col := range result.Columns {
				if i < len(d.Row) {
					row[col] = d.Row[i]
				}
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
