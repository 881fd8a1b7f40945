// Package main provides the entry point for the reposcan CLI.
//
// reposcan clones a list of git repositories and scans their text files for
// categorized patterns such as leaked credentials, profanity or internal
// host names, then writes JSON and CSV reports.
//
// Usage:
//
//	reposcan scan -l repos.txt
//	reposcan scan -l repos.json -c rules.yaml -b 4
//
// See --help for all available options.
package main

// main is the entry point for reposcan.
func main() {
	Execute()
}
