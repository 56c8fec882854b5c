// Command storefrontctl exercises the storefront backend-communication layer
// from a terminal: it resolves the session, reads the catalog, runs searches
// and computes facets against the configured backends.
package main

func main() {
	Execute()
}
