package main

import (
	"os"

	"aisuite/cmd"
)

// @title                       aisuite API
// @version                     1.0
// @description                 Multi-vendor AI generation service: conversations, completions, images, speech and transcriptions with per-workspace credits.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Bearer {access_token}
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
