// Package pipeline runs the test and deploy pipelines for one commit.
//
// Stages run strictly in order. The first failing stage ends the primary
// chain; failure reporting that follows it is shielded so a reporting error
// never replaces the original one.
package pipeline
