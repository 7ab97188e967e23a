package main

import (
	"context"

	"go.uber.org/zap"
)

func main() {
	app := mustBootstrapLockerAPI()
	defer app.Close()

	if err := app.Run(); err != nil && err != context.Canceled {
		app.log.Error("locker-api stopped", zap.Error(err))
	}
}
