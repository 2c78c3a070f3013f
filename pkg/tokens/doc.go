// Package tokens turns stored account credentials into upstream bearer tokens.
//
// The Manager caches one access token per account and refreshes it once it
// is within RefreshThreshold of expiry. Concurrent callers for the same
// account are serialized on a per-account mutex and re-check the cache after
// acquiring it, so only one refresh call is made per expiry. Unrelated
// accounts never wait on each other.
//
// Two refresh strategies exist, chosen by the account's auth method:
//
//   - MethodIDC ("idc", "builderid"): AWS SSO OIDC token exchange. When the
//     credential carries no client id/secret the strategy looks one up in the
//     injected ClientCache, then in the local SSO cache file, and finally
//     registers a new public client (logged as a warning, since a freshly
//     registered client usually cannot use an existing refresh token).
//   - MethodSocial ("social"): the desktop auth service refresh endpoint.
//
// Refresh failures are returned as *RefreshError and are never retried here.
package tokens
