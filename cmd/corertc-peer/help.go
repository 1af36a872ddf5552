package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagServer   string
	flagUsername string
	flagPassword string
	flagCall     string
	flagInput    string
	flagAudio    string
	flagMute     bool
	flagHelp     bool
)

func init() {
	flag.StringVarP(&flagServer, "server", "s", "127.0.0.1:8443", "Signaling server address")
	flag.StringVarP(&flagUsername, "username", "u", "", "Account username (required)")
	flag.StringVarP(&flagPassword, "password", "p", "", "Account password (required)")
	flag.StringVarP(&flagCall, "call", "c", "", "Username to call (omit to wait for an incoming call)")
	flag.StringVarP(&flagInput, "input", "i", "", "Raw H.264 Annex-B file to loop as local video (omit for no outgoing video)")
	flag.StringVarP(&flagAudio, "audio", "a", "", "Raw 16-bit PCM file to loop as local audio (omit for no outgoing audio)")
	flag.BoolVarP(&flagMute, "mute", "m", false, "Send silence instead of --audio")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `Peer-to-peer audio/video client

Usage: corertc-peer -u USER -p PASS [OPTION]...

  -s, --server=ADDR     Signaling server address (default: 127.0.0.1:8443)
  -u, --username=NAME   Account username (required)
  -p, --password=PASS   Account password (required)
  -c, --call=NAME       Username to call (omit to wait for an incoming call)
  -i, --input=FILE      Raw H.264 Annex-B file to loop as local video
  -a, --audio=FILE      Raw 16-bit PCM file to loop as local audio
  -m, --mute            Send silence instead of --audio
  -h, --help            Prints this help message and exits`

func help() {
	c := color.New(color.FgCyan)
	c.Println("corertc-peer")
	fmt.Println(helpString)
}
