// Package settingsgateway maintains a lazily-synchronized, in-memory mirror
// of per-entity configuration trees backed by a pluggable storage provider.
//
// A Gateway binds one Schema and one Provider for one logical table and hands
// out shared Settings instances by id. Reads are instant from cache; a
// Settings reconciles itself against storage on Sync, and its RequestHandler
// coalesces concurrent lookups so no id is ever fetched more than once at a
// time and distinct ids share bulk round trips.
//
// Providers for JSON files and Postgres live in the providers subpackage;
// importing it registers their DSN schemes with BuildProviderFromDSN.
package settingsgateway
