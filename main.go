// The main package for the site executable.
package main

import "github.com/JakeFAU/consulting-site/cmd"

func main() {
	cmd.Execute()
}
