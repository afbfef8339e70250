// Package cli provides the storygate-admin command-line interface.
//
// # Commands
//
// migrate: Apply database migrations
//
//	storygate-admin migrate
//
// seed: Reconcile built-in roles and an optional seed file
//
//	storygate-admin seed --file roles.yaml
//
// create-user / set-role: Manage users and their role
//
//	storygate-admin create-user --email ed@example.com --role EDITOR
//	storygate-admin set-role --user 12 --role AUTHOR
//
// issue-session: Print a bearer token for a user
//
//	storygate-admin issue-session --user 12 --ttl 1h
//
// check: Print the grants of a user (or a guest with --user 0), or answer
// a single query
//
//	storygate-admin check --user 12 --action update --subject Story
package cli
