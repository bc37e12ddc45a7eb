// Package main provides the entry point for the pagemirror CLI.
//
// pagemirror downloads a web page together with the stylesheets, scripts
// and images it references, rewrites every link to point at the local
// copies, and optionally crawls the pages it links to.
//
// Usage:
//
//	pagemirror get <url>
//	pagemirror get --crawl --list <file>
//
// See --help for all available options.
package main

// main is the entry point for pagemirror.
func main() {
	Execute()
}
