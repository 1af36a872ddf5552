package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/roomrtc/corertc/internal/config"
	"github.com/roomrtc/corertc/internal/dtls"
	"github.com/roomrtc/corertc/internal/logging"
	"github.com/roomrtc/corertc/internal/signaling"
)

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}

	configPath := flagConfig
	if configPath == "" {
		configPath = "roomrtc.conf"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if flagAddr != "" {
		cfg.ServerAddr = flagAddr
	}
	if flagUsers != "" {
		cfg.UsersFile = flagUsers
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}

	writer, err := config.OpenLineLogWriter(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer writer.Close()
	log := logging.DefaultLogger.WithWriter(writer).WithTag("corertcd")

	users, err := signaling.OpenUserStore(cfg.UsersFile)
	if err != nil {
		log.Error("open user store: %v", err)
		os.Exit(1)
	}

	cert, err := dtls.GenerateSelfSigned()
	if err != nil {
		log.Error("generate certificate: %v", err)
		os.Exit(1)
	}

	server := signaling.NewServer(cfg.ServerAddr, users)
	log.Info("listening on %s", cfg.ServerAddr)
	if err := server.ListenAndServe(cert); err != nil {
		log.Error("serve: %v", err)
		os.Exit(1)
	}
}
