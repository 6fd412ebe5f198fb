package main

import (
	"context"
	"log"

	"github.com/m3rciful/gatebot/app/bootstrap"
	appconfig "github.com/m3rciful/gatebot/app/config"
	corecmd "github.com/m3rciful/gatebot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return appconfig.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return bootstrap.New(ctx, cfg.(*appconfig.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
