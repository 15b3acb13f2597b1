package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"committed-cart/api"
	"committed-cart/flags"
	"committed-cart/service"
)

var httpAddrFlag = &cli.StringFlag{
	Name:    "http.addr",
	Usage:   "HTTP listen address",
	Value:   ":8080",
	EnvVars: []string{"CART_HTTP_ADDR"},
}

func main() {
	app := &cli.App{
		Name:   "cart-api",
		Usage:  "Serve committed carts rebuilt from encrypted contribution messages",
		Flags:  append(append(append([]cli.Flag{httpAddrFlag}, flags.LoggingFlags...), flags.SourceFlags...), flags.CartFlags...),
		Before: flags.SetupLogging,
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	sources, err := flags.OpenSources(c)
	if err != nil {
		return err
	}
	defer sources.Close()

	carts := service.NewCartService(sources.Messages, sources.Projects, flags.ServiceConfig(c))
	server := api.NewServer(carts, sources.Rounds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Cart API configured", "backend", c.String(flags.BackendFlag.Name), "addr", c.String(httpAddrFlag.Name))
	return server.ListenAndServe(ctx, c.String(httpAddrFlag.Name))
}
