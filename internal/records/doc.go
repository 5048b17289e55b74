// Package records persists media artifacts and the edits that own them.
//
// An Edit tracks lineage for one upload: the original artifact, the artifact
// produced by the latest cut or assembly, and the segment list that produced
// it. Artifacts are immutable apart from their processing status, transfer
// status, progress, and remote URL. New renders create new artifacts linked
// to their source.
//
// Repository is the narrow get/create/update contract the editor and job
// handlers depend on. SQLiteRepository shares the queue database file;
// Memory backs tests.
package records
