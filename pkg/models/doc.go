// Package models maps caller-facing model names onto upstream model ids.
//
// Resolution order for a requested name:
//
//  1. A configured thinking suffix (default "-thinking") is stripped and
//     turns on synthetic thinking mode.
//  2. An exact match against an enabled catalogue model id.
//  3. Mapping rules in descending priority; the first match wins. Exact,
//     prefix and contains rules compare case-insensitively, regex rules must
//     match the whole name.
//  4. The configured default model, else the enabled model with the lowest
//     display order, else FallbackModelID.
//
// Results are cached by the lower-cased requested name until Refresh.
package models
