// Package github enumerates the repositories of a GitHub organization so
// they can be written as a repository list for `reposcan scan`.
package github
