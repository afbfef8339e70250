// Package login exchanges credentials for storygate session tokens.
//
// Two methods are supported: an email and bcrypt-hashed password checked
// against the user table, and the OpenID Connect authorization code flow.
// OIDC only signs in users that already exist with a matching email;
// accounts are created by administrators.
//
//	POST /api/session                {"email": "...", "password": "..."}
//	GET  /api/session/oidc           redirect to the identity provider
//	GET  /api/session/oidc/callback  complete the flow
//
// All three answer 201 with {"token", "user_id", "expires_at"} on success.
package login
