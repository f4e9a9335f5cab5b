// Package mock provides test doubles for the source interfaces.
//
// Function fields override the default behavior; call counts are safe to
// read while the ingestion executor is running.
package mock
