package main

import (
	"communityTasks/internal/app"
	"communityTasks/internal/config"
	"context"
	"log"
	"os"

	"gopkg.in/urfave/cli.v2"
)

import _ "github.com/joho/godotenv/autoload"

const flagConfig = "config"

var version = "dev"

func main() {
	a := &cli.App{
		Name:    "community-tasks-api",
		Usage:   "HTTP-сервис биржи задач",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Usage:   "Путь к config.yml; по умолчанию ищется в текущей директории.",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
		},
		Action: run,
	}

	if err := a.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return err
	}

	ctx := context.Background()
	application, err := app.New(cfg).Init(ctx)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}
