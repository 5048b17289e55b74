// Package preflight provides readiness checks for the filesystem paths and
// tools splicer depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunJobChecks before an encoding lane claims
//     a job. If a check fails, the lane waits instead of starting a render
//     that cannot finish.
//   - The CLI "splicer jobs health" command uses RunAll to display readiness.
package preflight
