// Package coordinator talks to the distributed job coordinator: it turns a
// physical plan into a job submission, blocks until the job reaches a
// terminal status, and reports that status back.
//
// Two implementations of Client exist. HTTPClient submits over the
// coordinator's HTTP+JSON surface (POST /jobs, then status polling).
// LocalRunner executes the plan in-process against a storage backend and
// is selected when the coordinator endpoint is the literal "local".
package coordinator
