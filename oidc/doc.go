// oidc is a package for verifying a relying party's integration with an
// OIDC provider using the typical 3-legged authorization code flow: it can
// build authorization and logout URLs, exchange an authorization code for a
// token set, validate an access token against the provider's keys, and
// refresh tokens.
//
// Primary types provided by the package:
//
//   - Config: the relying party configuration (issuer, client id/secret,
//     redirect URL, scopes).
//
//   - Provider: discovers the provider's endpoints and performs the flow
//     operations. Exactly one network exchange is made per operation; the
//     package never retries on the caller's behalf since authorization
//     codes are single-use.
//
//   - Token: the immutable token set produced by an exchange or refresh,
//     including a typed projection of the authenticated user's claims.
//     Access, refresh and id tokens redact themselves when printed or
//     marshaled.
package oidc
