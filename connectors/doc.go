// Package connectors holds the built-in delivery connectors (webhook and
// email) and their registration helpers. Each connector classifies its own
// failures as transient or permanent; the dispatch worker only acts on the
// reported outcome.
package connectors
