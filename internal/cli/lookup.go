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
	"github.com/ecstasoy/addrecho/pkg/loadbalancer"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/registry"
)

func newLookupCmd(g *globalFlags) *cobra.Command {
	var (
		transport string
		call      bool
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <service>",
		Short: "List registered servers, follow them with --watch, or query one with --call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			service := args[0]
			out := cmd.OutOrStdout()

			if transport != "" {
				if _, err := protocol.ParseTransport(transport); err != nil {
					return err
				}
			}

			disc, err := e.openDiscovery()
			if err != nil {
				return err
			}
			defer disc.Close()

			ctx := cmd.Context()
			instances, err := disc.GetInstances(ctx, service)
			if err != nil {
				e.logger.Errorf("%s error: %v", protocol.Classify(err), err)
				return err
			}
			instances = registry.Filter(instances, transport)

			if watch {
				for _, inst := range instances {
					fmt.Fprintln(out, inst)
				}
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				w, err := disc.Watch(ctx, service)
				if err != nil {
					e.logger.Errorf("%s error: %v", protocol.Classify(err), err)
					return err
				}
				return watchEvents(ctx, w, transport, out)
			}

			if len(instances) == 0 {
				return fmt.Errorf("%w: %s", registry.ErrNotFound, service)
			}

			if !call {
				for _, inst := range instances {
					fmt.Fprintln(out, inst)
				}
				return nil
			}

			tr, _ := protocol.ParseTransport(transport)
			lb, err := loadbalancer.New(e.cfg.Client.LoadBalancer)
			if err != nil {
				return err
			}

			c, err := client.NewClient(
				client.WithTransport(tr),
				client.WithDiscovery(disc, service),
				client.WithLoadBalancer(lb),
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
				e.logger.Errorf("%s error: %v", protocol.Classify(err), err)
				return err
			}
			_, err = fmt.Fprintln(out, reply)
			return err
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "only consider tcp or udp instances")
	cmd.Flags().BoolVar(&call, "call", false, "query one instance picked by the load balancer")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep printing registry changes until interrupted")
	cmd.MarkFlagsMutuallyExclusive("call", "watch")
	return cmd
}

// watchEvents prints one line per registry change until ctx is done.
func watchEvents(ctx context.Context, w registry.Watcher, transport string, out io.Writer) error {
	defer w.Stop()
	for {
		ev, err := w.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if transport != "" && ev.Instance.Transport != transport {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %s\n", ev.Type, ev.Instance); err != nil {
			return err
		}
	}
}
