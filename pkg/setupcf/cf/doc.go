// Package cf wraps the cf CLI: it runs `cf api`, `cf auth` and `cf target`
// and edits the session file the CLI keeps in $CF_HOME/.cf/config.json.
package cf
