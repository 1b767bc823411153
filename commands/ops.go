package commands

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Operation int

const PORT_REGEX = "^[0-9]{4,5}$"

const (
	DEFAULT Operation = iota
	// Print the current head.
	HEAD
	// Print the UTXO set of the head.
	UTXO
	// List the transactions waiting in the pool.
	PENDING
	// Print the largest set of pending transactions valid on the head.
	SELECT
	// Show the blockchain.
	SHOW
	// Dump a retained block with all its fields, the head by default.
	DUMP
	// Print usage.
	HELP
)

var ErrInvalidCommand = errors.New("invalid command")

// A command contains a operation and many arguments.
type Command struct {
	Op   Operation
	Args []string
}

func (c Command) IsValid() bool {
	switch c.Op {
	case HEAD, UTXO, PENDING, SELECT, HELP:
		return len(c.Args) == 0
	case SHOW:
		if len(c.Args) != 1 {
			return false
		}
		// depth must be a positive number.
		d, err := strconv.Atoi(c.Args[0])
		return err == nil && d > 0
	case DUMP:
		return len(c.Args) <= 1
	default:
		return false
	}
}

// CreateCommand parses one line typed into the full node console.
func CreateCommand(s string) (Command, error) {
	ss := strings.Fields(s)
	if len(ss) == 0 {
		return Command{}, errors.New("command is empty")
	}
	cmd := Command{}
	switch ss[0] {
	case "head":
		cmd.Op = HEAD
	case "utxo":
		cmd.Op = UTXO
	case "pending":
		cmd.Op = PENDING
	case "select":
		cmd.Op = SELECT
	case "show":
		cmd.Op = SHOW
	case "dump":
		cmd.Op = DUMP
	case "help":
		cmd.Op = HELP
	}
	cmd.Args = ss[1:]
	if !cmd.IsValid() {
		return Command{}, errors.Wrapf(ErrInvalidCommand, "%q", s)
	}
	return cmd, nil
}

// NodeUsage describes the full node console commands.
const NodeUsage = `head              print the current head
utxo              print the UTXO set of the head
pending           list pending transactions
select            print the pending transactions a new block could carry
show <depth>      render the last <depth> heights of the blockchain
dump [hash]       dump a retained block, the head by default
help              print this message`
