// sqlport translates T-SQL stored procedures into Go, routed through a
// pluggable DML back-end, and maps proto services onto procedure
// inventories.
package main

import "os"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
