// Package config defines the gigaformat configuration model.
//
// Configuration is loaded from a YAML file, filled in with defaults,
// overridden by environment variables, and validated. The credential
// fields are normally left out of the file and supplied through
// GIGACHAT_CLIENT_ID and GIGACHAT_CLIENT_SECRET.
//
// A Watcher can reload the file on change so quota limits and formatting
// parameters can be tuned without restarting the service.
package config
