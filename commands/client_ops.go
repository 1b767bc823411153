package commands

import (
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// do nothing operation
	NOOP Operation = iota
	// Initiate a money transfer from wallet
	TRANSFER
	// Print user public key
	MY_PK
	// Connect a full node with ip address and port
	CONNECT
	// Get my own balance
	GET_BALANCE
	// Print the head of the connected full node
	GET_HEAD
)

var portRegex = regexp.MustCompile(PORT_REGEX)

type ClientCommand struct {
	Op   Operation
	Args []string
}

func (c ClientCommand) IsValid() bool {
	switch c.Op {
	case TRANSFER:
		if len(c.Args) != 2 {
			return false
		}
		v, err := strconv.ParseFloat(c.Args[1], 64)
		return err == nil && v > 0
	case MY_PK, GET_BALANCE, GET_HEAD:
		return len(c.Args) == 0
	case CONNECT:
		if len(c.Args) != 2 {
			return false
		}
		ipAddr := c.Args[0]
		port := c.Args[1]
		ip := net.ParseIP(ipAddr)
		return ip != nil && ip.To4() != nil && portRegex.MatchString(port)
	default:
		return false
	}
}

// CreateClientCommand parses one line typed into the wallet console.
func CreateClientCommand(s string) (ClientCommand, error) {
	ss := strings.Fields(s)
	if len(ss) == 0 {
		return ClientCommand{}, errors.New("command is empty")
	}
	cmd := ClientCommand{}
	switch ss[0] {
	case "transfer":
		cmd.Op = TRANSFER
	case "my_pk":
		cmd.Op = MY_PK
	case "connect":
		cmd.Op = CONNECT
	case "get_balance":
		cmd.Op = GET_BALANCE
	case "head":
		cmd.Op = GET_HEAD
	default:
		cmd.Op = NOOP
	}
	cmd.Args = ss[1:]
	if !cmd.IsValid() {
		return ClientCommand{}, errors.Wrapf(ErrInvalidCommand, "%q", s)
	}
	return cmd, nil
}

// WalletUsage describes the wallet console commands.
const WalletUsage = `connect <ipv4> <port>      connect to a full node
transfer <hex pk> <value>  pay value to the owner of pk
get_balance                print the total value you own
head                       print the head of the full node
my_pk                      print your public key`
