// Package medium provides the shared key/value store and broadcast bus that
// portal windows use to find each other.
//
// [Store] and [Hub] are the in-process implementations: several windows in one
// process (tests, demos) share a Store and join the same Hub. The sqlite
// subpackage provides the cross-process equivalents backed by one database
// file.
package medium
