// Command fulbito balances rosters locally and load tests a running server.
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/okian/fulbito/pkg/logger"
)

var options struct {
	Balance  BalanceCmd  `command:"balance"  description:"split a roster file into balanced teams"`
	LoadTest LoadTestCmd `command:"loadtest" description:"drive a running server and verify every result"`

	Debug     bool   `long:"debug"      env:"FULBITO_DEBUG"      description:"turn on debug logging"`
	LogFormat string `long:"log-format" env:"FULBITO_LOG_FORMAT" description:"log format" choice:"text" choice:"json" default:"text"`
}

func main() {
	p := flags.NewParser(&options, flags.Default)
	p.CommandHandler = func(c flags.Commander, args []string) error {
		if err := logger.Init(logger.WithFormat(options.LogFormat), logger.WithWriter(os.Stderr)); err != nil {
			return err
		}
		if options.Debug {
			_ = logger.SetLevelString("debug")
		}
		return c.Execute(args)
	}

	if _, err := p.Parse(); err != nil {
		if errors.Is(err, flags.ErrHelp) {
			os.Exit(0)
		}
		// go-flags has already printed err
		os.Exit(1)
	}
}
