package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Luismorlan/btc_ledger/commands"
	"github.com/Luismorlan/btc_ledger/utils"
	"github.com/Luismorlan/btc_ledger/wallet"
)

var (
	keyPath      string
	createNewKey bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Sign transfers and send them to a full node.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)

		key, err := utils.ParseKeyFile(keyPath, createNewKey)
		if err != nil {
			return err
		}
		w := wallet.NewWallet(key)
		defer w.Close()
		fmt.Println("Wallet public key: " + w.GetPublicKey())
		fmt.Println(commands.WalletUsage)

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			c, err := commands.CreateClientCommand(scanner.Text())
			if err != nil {
				fmt.Println(err)
			} else {
				HandleCommand(c, w)
			}
			fmt.Print("> ")
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.Flags().StringVar(&keyPath, "key_path", "/tmp/mykey.pem", "RSA file path for your private key")
	rootCmd.Flags().BoolVar(&createNewKey, "create_key", false, "generate a new key at key_path")
	rootCmd.Flags().StringVar(&logLevel, "log_level", "warn", "logrus level")
}

func HandleCommand(c commands.ClientCommand, w *wallet.Wallet) {
	switch c.Op {
	case commands.TRANSFER:
		receiverPK := c.Args[0]
		value, _ := strconv.ParseFloat(c.Args[1], 64)
		tx, err := w.TransferMoney(receiverPK, value)
		if err != nil {
			fmt.Println("fail to transfer money: " + err.Error())
			return
		}
		fmt.Printf("sent transaction %s, value: %f\n", tx.Hash, value)
	case commands.MY_PK:
		fmt.Println(w.GetPublicKey())
	case commands.CONNECT:
		ipAddr := c.Args[0]
		port := c.Args[1]
		if err := w.SetFullNodeConnection(ipAddr, port); err != nil {
			fmt.Println("failed to connect to full node endpoint " + ipAddr + ":" + port)
			return
		}
		fmt.Println("connected full node endpoint " + ipAddr + ":" + port)
	case commands.GET_BALANCE:
		v, err := w.GetTotalDeposit()
		if err != nil {
			fmt.Println("fail to get balance: " + err.Error())
			return
		}
		fmt.Printf("your total balance is: %f\n", v)
	case commands.GET_HEAD:
		head, err := w.GetHead()
		if err != nil {
			fmt.Println("fail to get head: " + err.Error())
			return
		}
		fmt.Printf("head %s height %d\n", head.Hash, head.Height)
	default:
		fmt.Printf("Unimplemented command: %d\n", c.Op)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
