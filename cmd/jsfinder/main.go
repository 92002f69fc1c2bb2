// Package main provides the entry point for the jsfinder CLI.
//
// jsfinder discovers the JavaScript files of a website by following
// script-to-script references from its pages, restricted to one domain.
//
// Usage:
//
//	jsfinder scan <domain>
//	jsfinder scan example.com example.org
//	jsfinder history <domain>
//
// See --help for all available options.
package main

// main is the entry point for jsfinder.
func main() {
	Execute()
}
