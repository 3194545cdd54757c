package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/bsaid97/go-boundary-prep/utils"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root, a := newRootCmd(os.Stderr)
	if err := execute(ctx, root, a); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		logger := utils.NewLogger(os.Stderr, log.InfoLevel)
		if code := utils.GetCode(err); code != "" {
			logger.Error(utils.UserMessage(err), "code", code)
		} else {
			logger.Error(err)
		}
		os.Exit(1)
	}
}
