// Package configuration provides loading and merging of YAML-based watchit
// configuration files.
package configuration
