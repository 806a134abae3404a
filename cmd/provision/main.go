// cmd/provision/main.go - entry point of the provisioning tool.

package main

import (
	"os"

	"github.com/windowsadmins/provision/pkg/cli"
	"github.com/windowsadmins/provision/pkg/utils"
)

func main() {
	utils.PatchArgs()
	os.Exit(cli.Execute(os.Args[1:]))
}
