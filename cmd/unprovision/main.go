// cmd/unprovision/main.go - stand-alone uninstaller, equivalent to
// "provision uninstall --silent".

package main

import (
	"os"

	"github.com/windowsadmins/provision/pkg/cli"
	"github.com/windowsadmins/provision/pkg/utils"
)

func main() {
	utils.PatchArgs()
	args := append([]string{"uninstall", "--silent"}, os.Args[1:]...)
	os.Exit(cli.Execute(args))
}
