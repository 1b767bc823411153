package main

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/Luismorlan/btc_ledger/commands"
	"github.com/Luismorlan/btc_ledger/config"
	"github.com/Luismorlan/btc_ledger/full_node"
	"github.com/Luismorlan/btc_ledger/service"
	"github.com/Luismorlan/btc_ledger/utils"
)

const logModule = "main"

var (
	configPath   string
	createNewKey bool
)

var rootCmd = &cobra.Command{
	Use:   "full_node",
	Short: "Keep the recent blockchain and serve it to wallets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ParseAppConfig(configPath)
		if err != nil {
			return err
		}
		return runNode(cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config_path", "full_node/cmd/config.yaml", "path to full node config")
	rootCmd.Flags().BoolVar(&createNewKey, "create_key", false, "generate a new genesis key at key_path")
}

// ParseCommand reads console commands from stdin until it is closed.
func ParseCommand(cmd chan<- commands.Command) {
	defer close(cmd)
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		c, err := commands.CreateCommand(scanner.Text())
		if err != nil {
			fmt.Println(err)
			fmt.Print("> ")
			continue
		}
		cmd <- c
	}
}

func HandleCommand(cmd <-chan commands.Command, server *full_node.FullNodeServer, showPath string) {
	for c := range cmd {
		if err := server.Execute(c, os.Stdout, showPath); err != nil {
			fmt.Println(err)
		}
		fmt.Print("> ")
	}
}

func serveMetrics(port string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%s", port)
	log.WithFields(log.Fields{"module": logModule, "addr": addr}).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithFields(log.Fields{"module": logModule, "err": err}).Error("metrics server stopped")
	}
}

func runNode(cfg config.AppConfig) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	key, err := utils.ParseKeyFile(cfg.KeyPath, createNewKey)
	if err != nil {
		return err
	}
	genesis := utils.CreateGenesisBlock(cfg.CoinbaseReward, utils.PublicKeyToBytes(&key.PublicKey))

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	node := full_node.NewFullNode(genesis, cfg, full_node.WithRegisterer(reg))
	server := full_node.NewFullNodeServer(node)

	lis, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", cfg.Port))
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer()
	service.RegisterFullNodeServiceServer(grpcServer, server)

	if cfg.MetricsPort != "" {
		go serveMetrics(cfg.MetricsPort, reg)
	}

	fmt.Println(commands.NodeUsage)
	cmd := make(chan commands.Command)
	go ParseCommand(cmd)
	go HandleCommand(cmd, server, cfg.ShowPath)

	log.WithFields(log.Fields{"module": logModule, "port": cfg.Port, "genesis": genesis.Hash}).Info("starting to serve")
	return grpcServer.Serve(lis)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
