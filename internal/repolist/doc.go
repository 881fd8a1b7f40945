// Package repolist reads the list of repositories to scan.
//
// Three formats are supported and chosen by file extension:
//   - .csv and .tsv: tabular with a header row; the "url" column is required
//   - .json: an array of {"url", "name", "description"} objects, as written
//     by `reposcan list-org`
//   - anything else: one identifier per non-empty line
//
// Order and duplicates are preserved exactly as given.
package repolist
