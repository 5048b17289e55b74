package preflight

import "splicer/internal/config"

// MinFreeBytes is the free space an encoding lane needs in the work
// directory before it claims a job.
const MinFreeBytes uint64 = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunJobChecks executes the checks gating encoding work.
func RunJobChecks(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeBytes),
	}
}

// RunAll executes every applicable check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
	}
	results = append(results, RunJobChecks(cfg)...)
	if cfg.Transfer.Backend == config.TransferBackendLocal {
		results = append(results, CheckDirectoryAccess("Transfer directory", cfg.Transfer.RemoteDir))
	}
	return results
}
