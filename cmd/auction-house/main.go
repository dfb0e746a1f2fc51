// Command auction-house runs the custodial auction house: the socket server
// (TCP or vsock) and, when configured, the HTTP gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/auctionhouse/config"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/httpapi"
	"github.com/cloudx-io/auctionhouse/logging"
	"github.com/cloudx-io/auctionhouse/nft"
	"github.com/cloudx-io/auctionhouse/receipt"
	"github.com/cloudx-io/auctionhouse/server"
	"github.com/cloudx-io/auctionhouse/service"
	"github.com/cloudx-io/auctionhouse/store"
	"github.com/cloudx-io/auctionhouse/token"
)

const defaultConfigPath = "./config/auction-house.toml"

func main() {
	conf := flag.String("conf", defaultConfigPath, "conf file path")
	flag.Parse()

	c, err := config.UnmarshalConfig(*conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(c.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, log); err != nil {
		log.Error("Auction house stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Auction house stopped")
}

func run(ctx context.Context, c *config.Config, log *zap.Logger) error {
	st, err := store.Open(c.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if st != nil {
		defer func() {
			if err := st.Close(); err != nil {
				log.Warn("Failed to close store", zap.Error(err))
			}
		}()
	}

	svc, err := newService(ctx, c, st, log)
	if err != nil {
		return err
	}

	l, err := server.Listen(c.Server)
	if err != nil {
		return err
	}
	srv, err := server.New(svc, c.Server, log.Named("server"))
	if err != nil {
		_ = l.Close()
		return err
	}
	log.Info("Auction house starting",
		zap.String("transport", c.Server.Transport),
		zap.String("addr", l.Addr().String()),
		zap.Int("max_workers", c.Server.MaxWorkers),
		zap.Bool("devnet", c.Devnet))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx, l) })

	if c.HTTP.Listen != "" {
		httpCfg := c.HTTP
		httpCfg.Devnet = c.Devnet
		hl, err := net.Listen("tcp", httpCfg.Listen)
		if err != nil {
			_ = l.Close()
			return fmt.Errorf("failed to create http listener: %w", err)
		}
		router := httpapi.NewRouter(svc, httpCfg, log.Named("http"))
		gateway := httpapi.NewGateway(router, log.Named("http"))
		g.Go(func() error { return gateway.Serve(ctx, hl) })
	}

	return g.Wait()
}

// newService builds the collaborators, the engine and the request service.
// Records loaded from st are restored into the engine before it serves.
func newService(ctx context.Context, c *config.Config, st store.Store, log *zap.Logger) (*service.AuctionService, error) {
	ledger, err := newToken(ctx, c.Token)
	if err != nil {
		return nil, err
	}
	funds, err := token.Escrow(ledger, core.Address(c.Escrow))
	if err != nil {
		return nil, err
	}
	nfts, err := nft.New(c.NFT.Name, c.NFT.Symbol, core.Address(c.NFT.Minter))
	if err != nil {
		return nil, err
	}

	opts := []core.EngineOption{
		core.WithLogger(log.Named("engine")),
		core.WithAdmins(c.AdminAddresses()...),
	}
	if st != nil {
		opts = append(opts, core.WithPersister(st))
	}
	engine, err := core.NewAuctionEngine(c.Fee.FeeConfig(), funds, nfts, opts...)
	if err != nil {
		return nil, err
	}

	if st != nil {
		records, err := st.LoadAuctions(ctx)
		if err != nil {
			return nil, fmt.Errorf("load auctions: %w", err)
		}
		if len(records) > 0 {
			// The reference token and registry start empty on every boot, so
			// open auctions from a previous run have nothing backing them.
			if err := engine.Restore(ctx, records); err != nil {
				return nil, fmt.Errorf("restore %d auctions: %w", len(records), err)
			}
		}
	}

	svcOpts := []service.Option{service.WithLogger(log.Named("service"))}
	if c.Devnet {
		svcOpts = append(svcOpts, service.WithToken(ledger), service.WithRegistry(nfts))
	}
	if c.Receipts.Enabled {
		issuer, err := newIssuer(c.Receipts, log.Named("receipt"))
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, service.WithReceipts(issuer))
	}
	return service.New(engine, svcOpts...)
}

func newToken(ctx context.Context, c config.Token) (*token.Ledger, error) {
	supply, err := core.ParseAmount(c.InitialSupply)
	if err != nil {
		return nil, err
	}
	owner := core.Address(c.Owner)
	ledger, err := token.New(owner, c.Name, c.Symbol, supply)
	if err != nil {
		return nil, err
	}
	for _, b := range c.Genesis {
		amount, err := core.ParseAmount(b.Amount)
		if err != nil {
			return nil, err
		}
		if err := ledger.Mint(ctx, owner, core.Address(b.Account), amount); err != nil {
			return nil, fmt.Errorf("genesis balance for %s: %w", b.Account, err)
		}
	}
	return ledger, nil
}

func newIssuer(c config.Receipts, log *zap.Logger) (*receipt.Issuer, error) {
	keys, err := receipt.LoadKeyManager(c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load receipt key: %w", err)
	}
	opts := []receipt.IssuerOption{receipt.WithLogger(log)}
	if c.Attest {
		attester, err := receipt.NitroAttester()
		if err != nil {
			return nil, err
		}
		opts = append(opts, receipt.WithAttester(attester))
	}
	issuer, err := receipt.NewIssuer(keys, opts...)
	if err != nil {
		return nil, err
	}
	log.Info("Receipt signing enabled", zap.Bool("attested", issuer.Attested()))
	return issuer, nil
}
