package app

import (
	"context"
	"fmt"

	"taotie/internal/domain"
	"taotie/internal/ingest"
	"taotie/internal/session"
)

// DatasetSpec is a dataset to connect at startup.
type DatasetSpec struct {
	Name  string
	Conn  string
	Table string
}

// ConnectDatasets connects each spec through the worker, in order. A spec
// that fails is reported and skipped. It returns the number connected.
func (a *App) ConnectDatasets(ctx context.Context, specs []DatasetSpec) (int, []error) {
	var errs []error
	connected := 0
	for _, s := range specs {
		conn, err := ingest.ParseConn(s.Conn)
		if err != nil {
			errs = append(errs, fmt.Errorf("dataset %s: %w", s.Name, err))
			continue
		}
		cmd := session.ConnectCmd{Opts: domain.ConnectOpts{Conn: conn, Name: s.Name, Table: s.Table}}
		if _, err := a.Worker.Submit(ctx, cmd); err != nil {
			errs = append(errs, fmt.Errorf("dataset %s: %w", s.Name, err))
			continue
		}
		connected++
	}
	if connected > 0 {
		a.logger.Info("connected configured datasets", "connected", connected, "total", len(specs))
	}
	return connected, errs
}
