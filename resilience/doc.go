// Package resilience provides named retry pipelines shared by every
// repository, a registry that is fixed after construction, and the retry
// event service that is told when a retried operation finally succeeded.
package resilience
