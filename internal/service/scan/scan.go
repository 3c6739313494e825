// Package scan composes snapshot selection and table loading into the
// operations exposed by the CLI and the HTTP API.
package scan

import (
	"context"
	"log/slog"
	"time"

	"icescan/internal/domain"
	"icescan/internal/iceberg"
)

// FilesResult lists the live files of one content type at a snapshot.
type FilesResult struct {
	Table      string                      `json:"table"`
	SnapshotID uint64                      `json:"snapshot_id"`
	Content    iceberg.ManifestContentType `json:"content"`
	Files      []string                    `json:"files"`
}

// ManifestSummary describes one manifest of a loaded table.
type ManifestSummary struct {
	iceberg.Manifest
	LiveEntries    int `json:"live_entries"`
	DeletedEntries int `json:"deleted_entries"`
}

// ManifestsResult lists the manifests of a snapshot with per-content totals.
type ManifestsResult struct {
	Table      string                 `json:"table"`
	SnapshotID uint64                 `json:"snapshot_id"`
	Manifests  []ManifestSummary      `json:"manifests"`
	Stats      []iceberg.ContentStats `json:"stats"`
}

// Options configures a Service.
type Options struct {
	AllowMovedPaths bool
	Concurrency     int
	Logger          *slog.Logger
}

// Service answers snapshot and file queries against tables reachable
// through one FileIO.
type Service struct {
	locator         *iceberg.SnapshotLocator
	assembler       *iceberg.TableAssembler
	allowMovedPaths bool
	logger          *slog.Logger
}

// NewService creates a Service reading through fio.
func NewService(fio domain.FileIO, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		locator:         iceberg.NewSnapshotLocator(fio, logger),
		assembler:       iceberg.NewTableAssembler(fio, iceberg.AssemblerOptions{Logger: logger, Concurrency: opts.Concurrency}),
		allowMovedPaths: opts.AllowMovedPaths,
		logger:          logger,
	}
}

// Snapshot selects one snapshot of table.
func (s *Service) Snapshot(ctx context.Context, table string, sel iceberg.Selector) (*iceberg.Snapshot, error) {
	return s.locator.Select(ctx, table, sel)
}

// Snapshots lists every snapshot of table.
func (s *Service) Snapshots(ctx context.Context, table string) ([]*iceberg.Snapshot, error) {
	return s.locator.List(ctx, table)
}

// Load selects a snapshot and materializes its file set.
func (s *Service) Load(ctx context.Context, table string, sel iceberg.Selector) (*iceberg.Table, error) {
	start := time.Now()
	snap, err := s.locator.Select(ctx, table, sel)
	if err != nil {
		return nil, err
	}
	tbl, err := s.assembler.Load(ctx, table, snap, s.allowMovedPaths)
	if err != nil {
		return nil, err
	}
	s.logger.Info("table loaded", "table", table, "snapshot_id", snap.SnapshotID,
		"manifests", len(tbl.Entries), "duration_ms", time.Since(start).Milliseconds())
	return tbl, nil
}

// Files returns the live files of content type ct.
func (s *Service) Files(ctx context.Context, table string, sel iceberg.Selector, ct iceberg.ManifestContentType) (*FilesResult, error) {
	tbl, err := s.Load(ctx, table, sel)
	if err != nil {
		return nil, err
	}
	return &FilesResult{
		Table:      tbl.Path,
		SnapshotID: tbl.Snapshot.SnapshotID,
		Content:    ct,
		Files:      tbl.GetPaths(ct),
	}, nil
}

// Manifests returns the manifests of the selected snapshot.
func (s *Service) Manifests(ctx context.Context, table string, sel iceberg.Selector) (*ManifestsResult, error) {
	tbl, err := s.Load(ctx, table, sel)
	if err != nil {
		return nil, err
	}
	res := &ManifestsResult{
		Table:      tbl.Path,
		SnapshotID: tbl.Snapshot.SnapshotID,
		Manifests:  make([]ManifestSummary, 0, len(tbl.Entries)),
		Stats:      tbl.Stats(),
	}
	for _, te := range tbl.Entries {
		sum := ManifestSummary{Manifest: te.Manifest}
		for _, e := range te.Entries {
			if e.Status.IsLive() {
				sum.LiveEntries++
			} else {
				sum.DeletedEntries++
			}
		}
		res.Manifests = append(res.Manifests, sum)
	}
	return res, nil
}
