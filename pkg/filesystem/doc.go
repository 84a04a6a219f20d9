// Package filesystem provides path handling utilities. Its watching
// subpackage provides filesystem watching facilities.
package filesystem
