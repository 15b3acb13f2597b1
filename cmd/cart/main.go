package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"committed-cart/encryption"
	"committed-cart/flags"
	"committed-cart/models"
	"committed-cart/service"
	"committed-cart/storage"
	"committed-cart/subgraph"
)

var (
	roundFlag = &cli.StringFlag{
		Name:     "round",
		Usage:    "Funding round address",
		Required: true,
	}
	contributorFlag = &cli.StringFlag{
		Name:     "contributor",
		Usage:    "Contributor wallet address",
		Required: true,
	}
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "Contributor encryption key seed",
		EnvVars:  []string{"CART_ENCRYPTION_KEY"},
		Required: true,
	}
	outFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Also write the cart to this JSON file",
	}
	coordinatorFlag = &cli.StringFlag{
		Name:     "coordinator",
		Usage:    "Coordinator public key (hex)",
		Required: true,
	}
	optionFlag = &cli.Uint64Flag{
		Name:     "option",
		Usage:    "Vote option index",
		Required: true,
	}
	weightFlag = &cli.StringFlag{
		Name:  "weight",
		Usage: "Vote weight (decimal)",
		Value: "0",
	}
	nonceFlag = &cli.Uint64Flag{
		Name:  "nonce",
		Usage: "Command nonce",
		Value: 1,
	}
	stateIndexFlag = &cli.Uint64Flag{
		Name:  "state-index",
		Usage: "Contributor state index",
		Value: 1,
	}
)

func main() {
	app := &cli.App{
		Name:   "cart",
		Usage:  "Inspect committed carts of funding round contributors",
		Flags:  flags.LoggingFlags,
		Before: flags.SetupLogging,
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Rebuild and print a contributor's committed cart",
				Flags:  append(append([]cli.Flag{roundFlag, contributorFlag, keyFlag, outFlag}, flags.SourceFlags...), flags.CartFlags...),
				Action: showCart,
			},
			{
				Name:   "sync",
				Usage:  "Copy a contributor's round data from the subgraph into the local database",
				Flags:  append([]cli.Flag{roundFlag, contributorFlag, keyFlag}, flags.SyncFlags...),
				Action: syncRound,
			},
			{
				Name:   "pubkey",
				Usage:  "Print the public key derived from an encryption key seed",
				Flags:  []cli.Flag{keyFlag},
				Action: printPublicKey,
			},
			{
				Name:   "encode",
				Usage:  "Encrypt a vote command, for test fixtures",
				Flags:  []cli.Flag{keyFlag, coordinatorFlag, optionFlag, weightFlag, nonceFlag, stateIndexFlag},
				Action: encodeCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseAddress(c *cli.Context, flag *cli.StringFlag) (common.Address, error) {
	s := c.String(flag.Name)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid --%s address %q", flag.Name, s)
	}
	return common.HexToAddress(s), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func showCart(c *cli.Context) error {
	roundAddress, err := parseAddress(c, roundFlag)
	if err != nil {
		return err
	}
	contributor, err := parseAddress(c, contributorFlag)
	if err != nil {
		return err
	}

	sources, err := flags.OpenSources(c)
	if err != nil {
		return err
	}
	defer sources.Close()

	ctx, stop := signalContext()
	defer stop()

	round, err := sources.Rounds.RoundInfo(ctx, roundAddress)
	if err != nil {
		return err
	}
	carts := service.NewCartService(sources.Messages, sources.Projects, flags.ServiceConfig(c))
	items, err := carts.GetCommittedCart(ctx, round, c.String(keyFlag.Name), contributor)
	if err != nil {
		return err
	}

	export := storage.NewCartExport(roundAddress, contributor, items)
	if out := c.String(outFlag.Name); out != "" {
		if err := storage.SaveCartExport(out, export); err != nil {
			return err
		}
		log.Info("Wrote cart export", "path", out, "id", export.ID, "items", len(items))
	}
	return printJSON(export)
}

func syncRound(c *cli.Context) error {
	roundAddress, err := parseAddress(c, roundFlag)
	if err != nil {
		return err
	}
	contributor, err := parseAddress(c, contributorFlag)
	if err != nil {
		return err
	}

	client, err := subgraph.NewClient(flags.SubgraphConfig(c))
	if err != nil {
		return err
	}
	store, err := flags.OpenStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signalContext()
	defer stop()

	result, err := storage.NewSyncer(client, client, client, store).SyncRound(ctx, roundAddress, c.String(keyFlag.Name), contributor)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printPublicKey(c *cli.Context) error {
	keypair, err := encryption.KeypairFromSeed(c.String(keyFlag.Name))
	if err != nil {
		return err
	}
	fmt.Println(keypair.PublicKeyHex())
	return nil
}

type encodedMessage struct {
	Data      string `json:"data"`
	PublicKey string `json:"publicKey"`
}

func encodeCommand(c *cli.Context) error {
	keypair, err := encryption.KeypairFromSeed(c.String(keyFlag.Name))
	if err != nil {
		return err
	}
	coordinator, err := encryption.ParsePublicKey(c.String(coordinatorFlag.Name))
	if err != nil {
		return err
	}
	weight, ok := new(big.Int).SetString(c.String(weightFlag.Name), 10)
	if !ok || weight.Sign() < 0 {
		return fmt.Errorf("invalid --%s %q", weightFlag.Name, c.String(weightFlag.Name))
	}

	sharedKey, err := encryption.DeriveSharedKey(keypair.PrivateKey, coordinator)
	if err != nil {
		return err
	}
	msg, err := encryption.EncryptCommand(&models.VoteCommand{
		StateIndex:      c.Uint64(stateIndexFlag.Name),
		NewPubKey:       keypair.PublicKeyBytes(),
		VoteOptionIndex: c.Uint64(optionFlag.Name),
		NewVoteWeight:   weight,
		Nonce:           c.Uint64(nonceFlag.Name),
	}, keypair.PrivateKey, sharedKey)
	if err != nil {
		return err
	}
	return printJSON(encodedMessage{
		Data:      hexutil.Encode(msg.Data),
		PublicKey: hexutil.Encode(msg.EncPubKey),
	})
}
