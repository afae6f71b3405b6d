package main

import (
	"graphrag/internal/server"
	"graphrag/internal/util"
	"graphrag/pkg/logger"
	"graphrag/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
