package main

import (
	"github.com/tradegraph/clearing-backend/internal/server"
)

// @title Clearing Backend API
// @version 1.0
// @description Cross-chain settlement clearing service
// @BasePath /api/v1
func main() {
	server.Init()
}
