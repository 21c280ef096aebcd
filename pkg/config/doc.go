/*
Package config loads and validates Burrow server configuration.

Configuration is a YAML file merged over built-in defaults; command-line
flags may override individual fields after loading. A missing file is not
an error, the defaults describe a working single-host setup.
*/
package config
