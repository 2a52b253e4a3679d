// Package provision implements the cluster-provisioning handshake: a
// one-shot protocol that discovers an ephemeral cluster's filesystem and
// job-coordinator endpoints from the output stream of an external
// provisioning command.
//
// The command emits free-form text; five marker tokens (by default
// "hdfsUI:", "hdfs:", "mapredUI:", "mapred:", "hadoopConf:") introduce
// field values terminated by end of line. Reading stops as soon as the
// coordinator endpoint is finalized or the stream closes.
//
// The Provisioner caches the first successful result for the process
// lifetime and guards the compute-once sequence with a mutex, so
// concurrent engine initializations share a single handshake run. The
// command runs through a pluggable Transport (a local subprocess or an
// SSH session) selected per call, never through a global override.
package provision
