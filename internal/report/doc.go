// Package report publishes pipeline progress to the outside world: the commit
// check run, commit comments and the chat webhook.
package report
