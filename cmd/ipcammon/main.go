package main

import "github.com/bryanchriswhite/IPCamMonitor/cmd/ipcammon/commands"

func main() {
	commands.Execute()
}
