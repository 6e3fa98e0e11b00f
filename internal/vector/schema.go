package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

const ClassName = "ContentRowVector"

// SchemaClient is the subset of Weaviate schema operations the bootstrap
// needs.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema creates the row-vector class if missing and backfills any
// properties added since the class was first created.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "jobId",
			DataType: []string{"string"}, // UUID, exact match
		},
		{
			Name:     "contentId",
			DataType: []string{"string"},
		},
		{
			Name:     "kind",
			DataType: []string{"string"}, // reference | target
		},
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "position",
			DataType: []string{"int"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A content row embedding from an alignment run",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range properties {
		if !existing[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}
	return nil
}
