// Command samplemirror is the administrative CLI for sampled mirrors.
package main

import "github.com/leapstack-labs/samplemirror/internal/cli"

func main() {
	cli.Execute()
}
