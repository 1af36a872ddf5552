package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagConfig  string
	flagAddr    string
	flagUsers   string
	flagLogFile string
	flagHelp    bool
)

func init() {
	flag.StringVarP(&flagConfig, "config", "c", "", "Config file (default: roomrtc.conf; --addr, --users and --log override its keys)")
	flag.StringVarP(&flagAddr, "addr", "a", "", "Listen address (default: 127.0.0.1:8443)")
	flag.StringVarP(&flagUsers, "users", "u", "", "User store file (default: users.txt)")
	flag.StringVarP(&flagLogFile, "log", "l", "", "Log file (default: roomrtc.log)")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `Line-framed TLS signaling server for peer rendezvous

Usage: corertcd [OPTION]...

  -c, --config=FILE   Config file (default: roomrtc.conf)
  -a, --addr=ADDR     Listen address (default: 127.0.0.1:8443)
  -u, --users=FILE    User store file (default: users.txt)
  -l, --log=FILE      Log file (default: roomrtc.log)
  -h, --help          Prints this help message and exits`

func help() {
	c := color.New(color.FgCyan)
	c.Println("corertcd")
	fmt.Println(helpString)
}
