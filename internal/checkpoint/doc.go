// Package checkpoint persists fold-over checkpoint manifests.
//
// A manifest is a small JSON document stored as checkpoints/<id>.json.
// The blob CURRENT holds the name of the latest committed manifest;
// replacing it is the commit point of a checkpoint.
package checkpoint
