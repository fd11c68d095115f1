// Package models provides the data structures shared by the statement import pipeline:
// bank signatures and detection results, extracted transaction records, import sessions
// and their summaries.
package models
