package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"lingualign/internal/vector"
)

// Store persists alignment row embeddings in Weaviate and answers
// nearest-candidate queries for the review feature.
type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// EnsureSchema creates or backfills the vector class this store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(s.client))
}

func (s *Store) StoreRow(ctx context.Context, row vector.RowVector) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassName).
		WithProperties(map[string]interface{}{
			"jobId":     row.JobID,
			"contentId": row.ContentID,
			"kind":      row.Kind,
			"content":   row.Content,
			"position":  row.Position,
		}).
		WithVector(row.Values).
		Do(ctx)
	return err
}

func (s *Store) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"jobId"}).
			WithOperator(filters.Equal).
			WithValueString(jobID)).
		Do(ctx)
	return err
}

// GetRowVector fetches the stored embedding for one row.
func (s *Store) GetRowVector(ctx context.Context, jobID, kind, contentID string) ([]float32, error) {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().WithPath([]string{"jobId"}).WithOperator(filters.Equal).WithValueString(jobID),
			filters.Where().WithPath([]string{"kind"}).WithOperator(filters.Equal).WithValueString(kind),
			filters.Where().WithPath([]string{"contentId"}).WithOperator(filters.Equal).WithValueString(contentID),
		})

	fields := []graphql.Field{
		{Name: "contentId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(where).
		WithLimit(1).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	rows := extractRows(res.Data)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no vector stored for job %s %s row %s", jobID, kind, contentID)
	}

	additional, _ := rows[0]["_additional"].(map[string]interface{})
	raw, _ := additional["vector"].([]interface{})
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty vector for job %s %s row %s", jobID, kind, contentID)
	}
	values := make([]float32, len(raw))
	for i, v := range raw {
		if f, ok := v.(float64); ok {
			values[i] = float32(f)
		}
	}
	return values, nil
}

// NearestTargets returns the target rows of a job closest to the given
// vector, best first. Scores are cosine similarities derived from the
// reported distance.
func (s *Store) NearestTargets(ctx context.Context, jobID string, vec []float32, limit int) ([]vector.Candidate, error) {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().WithPath([]string{"jobId"}).WithOperator(filters.Equal).WithValueString(jobID),
			filters.Where().WithPath([]string{"kind"}).WithOperator(filters.Equal).WithValueString(vector.KindTarget),
		})

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "contentId"},
		{Name: "content"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var candidates []vector.Candidate
	for _, props := range extractRows(res.Data) {
		c := vector.Candidate{}
		if id, ok := props["contentId"].(string); ok {
			c.ContentID = id
		}
		if content, ok := props["content"].(string); ok {
			c.Content = content
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				// Weaviate reports cosine distance; similarity = 1 - distance.
				c.Score = float32(1 - distance)
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func extractRows(data map[string]models.JSONObject) []map[string]interface{} {
	var out []map[string]interface{}
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := get[vector.ClassName].([]interface{})
	if !ok {
		return nil
	}
	for _, r := range rows {
		if props, ok := r.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}
