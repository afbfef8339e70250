// Package seed keeps the role table in line with the built-in roles and an
// optional YAML seed file.
//
// Seed file format:
//
//	roles:
//	  - name: REVIEWER
//	    display_name: Reviewer
//	    description: Reviews stories before publication
//	    permissions: [story:read, story:update]
//	  - name: USER
//	    permissions: [story:read, story:create, contact:create]
//
// An entry naming a built-in role replaces that role's default definition.
// Reconciliation runs at startup, when the file changes (Watch) and on a cron
// schedule (Schedule).
package seed
