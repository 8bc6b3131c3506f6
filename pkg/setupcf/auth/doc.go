// Package auth resolves the configured OAuth2 grant type into a cf CLI
// session. Token-endpoint grants (jwt-bearer, private-key-jwt) exchange an
// assertion against UAA and write the result into the cf session file;
// delegated grants (client-credentials, password) hand the credentials to
// `cf auth`.
package auth
