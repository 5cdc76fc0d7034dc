// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Cold-path diagnostic logging (alloc-light)
//
// Purpose:
//   - Logs setup progress, ingestion faults and probe failures.
//   - Never called between the timer start/stop of a pipeline model.
//
// Notes:
//   - Avoids fmt.Sprintf; messages are plain concatenation.
//   - Writes straight to stderr so report output on stdout stays clean CSV.
//
// ⚠️ Never invoke in hot loops — use only in failure diagnostics.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "coroinfer/utils"

// DropError logs an error under a tag. A nil error logs the tag alone,
// which is used for tagged warnings.
//
//go:nosplit
//go:inline
//go:registerparams
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
		return
	}
	utils.PrintWarning(prefix + "\n")
}

// DropMessage logs a tagged message.
//
//go:nosplit
//go:inline
//go:registerparams
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}
