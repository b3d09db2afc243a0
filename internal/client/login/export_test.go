package login

import "github.com/mkrupp/jobhunter/internal/infra/logging"

// SetLogger replaces the orchestrator's logger.
func SetLogger(o *Orchestrator, log logging.Logger) {
	o.log = log
}
