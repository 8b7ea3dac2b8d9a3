package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/fedimesh/qkvc/bus/wstransport"
	"github.com/fedimesh/qkvc/logging"
	"github.com/fedimesh/qkvc/qerrors"
)

// ClusterCmd groups commands that run this installation as a long-lived
// process participating in the cluster coherence mesh, modeled on the
// teacher's ServerCmd (cmd/qntx/commands/server.go): start in a
// goroutine, block on a signal channel, shut down gracefully on the
// first interrupt.
var ClusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run this installation's cluster coherence transport",
}

var clusterServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept peer connections and dial configured peers until interrupted",
	RunE:  runClusterServe,
}

func init() {
	ClusterCmd.AddCommand(clusterServeCmd)
}

func runClusterServe(cmd *cobra.Command, args []string) error {
	_, r, transport, cfg, err := openClusterBundle()
	if err != nil {
		return err
	}

	ws, ok := transport.(*wstransport.Transport)
	if !ok {
		return qerrors.Newf("cluster.listen_addr or cluster.peer_addrs must be set to run cluster serve")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var srv *http.Server
	if cfg.Cluster.ListenAddr != "" {
		upgrader := websocket.Upgrader{}
		mux := http.NewServeMux()
		mux.HandleFunc("/coherence", func(w http.ResponseWriter, req *http.Request) {
			if err := ws.Upgrade(upgrader, w, req); err != nil {
				logging.Logger.Warnw("failed to upgrade peer connection", logging.FieldError, err)
			}
		})
		srv = &http.Server{Addr: cfg.Cluster.ListenAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		go func() {
			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					logging.Logger.Errorw("coherence listener stopped", logging.FieldError, err)
				}
			case <-ctx.Done():
			}
		}()
		fmt.Printf("listening for peers on %s\n", cfg.Cluster.ListenAddr)
	}

	for _, peer := range cfg.Cluster.PeerAddrs {
		ws.Dial(ctx, peer)
		fmt.Printf("dialing peer %s\n", peer)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("shutting down cluster transport")

	cancel()
	if srv != nil {
		_ = srv.Shutdown(context.Background())
	}
	return r.Dispose(context.Background())
}
