// Package entity defines the six wedding-planner record kinds and the pure
// normalizers that turn loosely typed input into canonical entities.
//
// This package is the foundational layer: every other internal package
// imports entity; entity imports nothing internal.
//
// Input arrives as a Record (map[string]any) from three places:
//   - stored JSON read back from the local key-value store
//   - remote snapshot documents delivered by a collaborator
//   - records assembled from user input (CLI flags, scenario files)
//
// Normalization rules shared by all kinds:
//   - the identity field (description, title, name or concept) must be a
//     non-empty string after trimming, otherwise the record is rejected
//   - closed enums fall back to a documented constant
//   - dates accept only calendar-valid YYYY-MM-DD, otherwise ""
//   - numbers parse leniently ("12,5" is 12.5); counts and amounts clamp at 0
//   - timestamps accept epoch milliseconds or a {seconds, nanoseconds} object
//
// Normalizers never panic and never return a partially filled entity.
// Re-normalizing a normalized entity's Record yields the same entity.
package entity
