package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecstasoy/addrecho/pkg/client"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/server"
)

type roleFlags struct {
	server bool
	client bool
	tcp    bool
	udp    bool
}

func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	rf := &roleFlags{}

	root := &cobra.Command{
		Use:   "addrecho <host> <port>",
		Short: "Tell a client the address a server sees it at",
		Long: "Run as a server (-s) that answers every TCP connection or UDP datagram with\n" +
			"the peer's \"ip:port\", or as a client (-c) that prints the address it was seen from.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, g, rf, args[0], args[1])
		},
	}

	g.register(root)

	f := root.Flags()
	f.BoolVarP(&rf.server, "server", "s", false, "run as server")
	f.BoolVarP(&rf.client, "client", "c", false, "run as client")
	f.BoolVarP(&rf.tcp, "tcp", "t", false, "use TCP (default)")
	f.BoolVarP(&rf.udp, "udp", "u", false, "use UDP")

	root.MarkFlagsMutuallyExclusive("server", "client")
	root.MarkFlagsOneRequired("server", "client")
	root.MarkFlagsMutuallyExclusive("tcp", "udp")
	root.MarkFlagsMutuallyExclusive("stdout", "file")

	root.AddCommand(
		newLookupCmd(g),
		newVersionCmd(),
	)
	return root
}

func run(cmd *cobra.Command, g *globalFlags, rf *roleFlags, host, port string) error {
	e, err := g.setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ep, err := protocol.ParseEndpoint(host, port)
	if err != nil {
		e.logger.Errorf("%v", err)
		return err
	}

	tr := protocol.TransportTCP
	if rf.udp {
		tr = protocol.TransportUDP
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.serveMetrics(); err != nil {
		e.logger.Errorf("%v", err)
		return err
	}

	if rf.server {
		err = runServer(ctx, e, ep, tr)
	} else {
		err = runClient(ctx, e, ep, tr, cmd.OutOrStdout())
	}

	if err != nil {
		e.logger.Errorf("%s error: %v", protocol.Classify(err), err)
	}
	return err
}

func runServer(ctx context.Context, e *env, ep protocol.Endpoint, tr protocol.Transport) error {
	cfg := e.cfg

	opts := []server.Option{
		server.WithEndpoint(ep),
		server.WithTransport(tr),
		server.WithLogger(e.logger),
		server.WithSettleDelay(cfg.Server.SettleDelay.Duration),
		server.WithBufferSize(cfg.Server.BufferSize),
		server.WithInterceptors(e.serverInterceptors()...),
	}

	if cfg.Registry.Type != "" {
		reg, heartbeat, err := e.openRegistry(ctx)
		if err != nil {
			return err
		}
		defer reg.Close()
		opts = append(opts, server.WithRegistry(reg, cfg.Registry.Service, heartbeat))
	}

	return server.NewServer(opts...).Start(ctx)
}

func runClient(ctx context.Context, e *env, ep protocol.Endpoint, tr protocol.Transport, out io.Writer) error {
	c, err := client.NewClient(
		client.WithEndpoint(ep),
		client.WithTransport(tr),
		client.WithLogger(e.logger),
		client.WithTimeout(e.cfg.Client.Timeout.Duration),
		client.WithBufferSize(e.cfg.Client.BufferSize),
		client.WithInterceptors(e.clientInterceptors()...),
	)
	if err != nil {
		return err
	}

	reply, err := c.Call(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, reply)
	return err
}
