package store

import (
	"context"
	"fmt"
)

// Service mirrors one row of the service table: logical service metadata
// written by the deployment engine and never mutated by the reconciler.
type Service struct {
	Name    string
	Project string
}

// UpsertService records a service's metadata, idempotently.
func (s *Store) UpsertService(ctx context.Context, svc Service) error {
	_, err := s.client.ExecContext(ctx,
		`INSERT INTO service (name, project) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET project = excluded.project`,
		svc.Name, svc.Project,
	)
	if err != nil {
		return fmt.Errorf("upsert service row: %w", err)
	}
	return nil
}

// Services returns every known service.
func (s *Store) Services(ctx context.Context) ([]Service, error) {
	rows, err := s.reader.QueryContext(ctx, "SELECT name, project FROM service")
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}

	services := make([]Service, 0, len(rows))
	for _, row := range rows {
		var svc Service
		if err := row.Scan(map[string]any{"name": &svc.Name, "project": &svc.Project}); err != nil {
			return nil, fmt.Errorf("scan service row: %w", err)
		}
		services = append(services, svc)
	}
	return services, nil
}
