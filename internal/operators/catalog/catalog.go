// Package catalog assembles the operator registry from configuration.
package catalog

import (
	"fmt"

	"mediaflow/internal/config"
	"mediaflow/internal/operator"
	"mediaflow/internal/operators/jobclient"
)

// Build registers one AsyncJob per configured async operator and one
// SyncCall per sync operator, all sharing a single job service client.
// Failure handling is not registered here; the stage executor calls
// operator.HandleFailure directly.
func Build(cfg *config.Config) (*operator.Registry, error) {
	reg := operator.NewRegistry()
	if cfg == nil || len(cfg.Operators.Async)+len(cfg.Operators.Sync) == 0 {
		return reg, nil
	}
	client := jobclient.New(cfg.Operators)
	if err := RegisterAsync(reg, cfg.Operators.Async, client); err != nil {
		return nil, err
	}
	if err := RegisterSync(reg, cfg.Operators.Sync, client); err != nil {
		return nil, err
	}
	return reg, nil
}

// RegisterAsync registers async operators against the given job client.
func RegisterAsync(reg *operator.Registry, entries []config.AsyncOperator, client operator.JobClient) error {
	for _, entry := range entries {
		kind := entry.JobKind
		if kind == "" {
			kind = entry.Name
		}
		job := operator.AsyncJob{Kind: kind, OutputMediaType: entry.OutputMediaType, Client: client}
		if err := reg.Register(entry.Name, job); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}

// RegisterSync registers operators that finish in one call to client.
func RegisterSync(reg *operator.Registry, entries []config.SyncOperator, client operator.Caller) error {
	for _, entry := range entries {
		action := entry.Action
		if action == "" {
			action = entry.Name
		}
		if err := reg.Register(entry.Name, operator.SyncCall(client, action, entry.OutputMediaType)); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}
