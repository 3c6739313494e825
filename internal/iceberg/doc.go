// Package iceberg resolves the committed state of an Apache Iceberg table.
//
// Given a table root it finds the newest metadata document, selects a
// snapshot (latest, by id, or as of a timestamp), reads that snapshot's
// manifest list and manifests, and exposes the live data and delete files.
// All reads go through domain.FileIO; nothing is written or cached.
//
//	loc := iceberg.NewSnapshotLocator(fio, logger)
//	snap, err := loc.ByLatest(ctx, "s3://lake/db/events")
//	tbl, err := iceberg.NewTableAssembler(fio, iceberg.AssemblerOptions{}).
//		Load(ctx, "s3://lake/db/events", snap, false)
//	files := tbl.GetPaths(iceberg.ManifestContentData)
package iceberg
